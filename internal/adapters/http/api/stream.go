package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/whattoeat/internal/domain/session"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// StreamDependencies subscribes to session events and applies commands
// sent over the socket.
type StreamDependencies interface {
	Subscribe(ctx context.Context, id string) (<-chan types.SessionEvent, func(), error)
	Command(ctx context.Context, id string, cmd session.Command, requestID string) (types.Session, bool, error)
}

// StreamHandler pushes session ticks and state changes over a websocket.
type StreamHandler struct {
	deps     StreamDependencies
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Named("stream"),
	}
}

// streamMessage is what clients may send: a command for the session.
type streamMessage struct {
	Command   string `json:"command"`
	RequestID string `json:"request_id"`
}

type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// conn serializes writes to one websocket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleStream handles GET /sessions/{id}/stream requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_stream"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before upgrading so unknown sessions get a plain 404
	events, unsubscribe, err := h.deps.Subscribe(ctx, id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	defer unsubscribe()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "upgrade failed", logger.String("session_id", id), logger.Error(WrapKind(op, ErrStream, err)))
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}

	go h.readLoop(ctx, cancel, c, id)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.mu.Lock()
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				c.mu.Unlock()
				return
			}
			if err := c.send(ev); err != nil {
				h.logger.Debug(ctx, "stream write failed", logger.String("session_id", id), logger.Error(WrapKind(op, ErrStream, err)))
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop applies commands from the client until the socket closes.
func (h *StreamHandler) readLoop(ctx context.Context, cancel context.CancelFunc, c *conn, id string) {
	defer cancel()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * pingPeriod))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * pingPeriod))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(ctx, "stream read error", logger.String("session_id", id), logger.Error(err))
			}
			return
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = c.send(streamError{Type: "error", Error: "invalid message"})
			continue
		}
		cmd, err := session.ParseCommand(msg.Command)
		if err != nil {
			_ = c.send(streamError{Type: "error", Error: err.Error()})
			continue
		}
		// state changes come back through the subscription
		if _, _, err := h.deps.Command(ctx, id, cmd, msg.RequestID); err != nil {
			_ = c.send(streamError{Type: "error", Error: err.Error()})
		}
	}
}
