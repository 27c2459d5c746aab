package drawcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/whattoeat/internal/domain/catalog"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s: %s", e.Status, e.Code, e.Message)
}

// Remote talks to a running server over HTTP and websockets.
type Remote struct {
	base   string
	client *http.Client
	dialer *websocket.Dialer
}

// NewRemote creates a backend for the server at baseURL.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// do sends a request and decodes a JSON reply into out when out is non-nil.
func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Health verifies the server is up. /healthz serves prometheus metrics, so
// any 2xx counts.
func (r *Remote) Health(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Vendors implements Backend.
func (r *Remote) Vendors(ctx context.Context) ([]catalog.Vendor, error) {
	var raw []struct {
		Name   string   `json:"name"`
		Group  string   `json:"group"`
		Dishes []string `json:"dishes"`
	}
	if err := r.do(ctx, http.MethodGet, "/catalog", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]catalog.Vendor, len(raw))
	for i, v := range raw {
		dishes := make([]catalog.Dish, len(v.Dishes))
		for j, d := range v.Dishes {
			dishes[j] = catalog.Dish{Name: d}
		}
		out[i] = catalog.Vendor{Name: v.Name, Group: v.Group, Dishes: dishes}
	}
	return out, nil
}

// Draw implements Backend.
func (r *Remote) Draw(ctx context.Context) (types.Draw, error) {
	var d types.Draw
	err := r.do(ctx, http.MethodPost, "/draw", nil, &d)
	return d, err
}

type streamCommand struct {
	Command   string `json:"command"`
	RequestID string `json:"request_id"`
}

type streamEvent struct {
	types.SessionEvent
	Error string `json:"error"`
}

// Spin implements Backend. It creates a session, streams it until a result
// arrives and deletes it afterwards.
func (r *Remote) Spin(ctx context.Context, onTick func(types.Tick)) (types.Draw, error) {
	var s types.Session
	if err := r.do(ctx, http.MethodPost, "/sessions", nil, &s); err != nil {
		return types.Draw{}, err
	}
	defer func() {
		_ = r.do(context.Background(), http.MethodDelete, "/sessions/"+url.PathEscape(s.ID), nil, nil)
	}()

	wsURL, err := r.streamURL(s.ID)
	if err != nil {
		return types.Draw{}, err
	}
	ws, resp, err := r.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return types.Draw{}, fmt.Errorf("dial stream: %w", err)
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan types.SessionEvent)
	go func() {
		defer close(events)
		for {
			var ev streamEvent
			if err := ws.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Error != "" {
				logger.Get().Warn(ctx, "stream error", logger.String("session_id", s.ID), logger.String("error", ev.Error))
				continue
			}
			select {
			case events <- ev.SessionEvent:
			case <-ctx.Done():
				return
			}
		}
	}()

	send := func(cmd string) func(context.Context) error {
		return func(context.Context) error {
			return ws.WriteJSON(streamCommand{Command: cmd, RequestID: uuid.NewString()})
		}
	}
	return follow(ctx, events, send("start"), send("stop"), onTick)
}

func (r *Remote) streamURL(id string) (string, error) {
	u, err := url.Parse(r.base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/sessions/" + url.PathEscape(id) + "/stream"
	return u.String(), nil
}

// Close implements Backend.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
