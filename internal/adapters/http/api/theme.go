package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/whattoeat/internal/domain/session"
)

const (
	clientIDHeader     = "X-Client-ID"
	clientIDCookie     = "client_id"
	colorSchemeHeader  = "Sec-CH-Prefers-Color-Scheme"
	clientCookieMaxAge = 365 * 24 * 60 * 60
)

// ThemeDependencies reads and writes per-client theme preferences.
type ThemeDependencies interface {
	Theme(ctx context.Context, clientID string, prefersDark bool) (session.Theme, error)
	SetTheme(ctx context.Context, clientID string, theme session.Theme) error
	ToggleTheme(ctx context.Context, clientID string, prefersDark bool) (session.Theme, error)
}

// ThemeHandler handles theme requests.
type ThemeHandler struct {
	deps ThemeDependencies
}

// NewThemeHandler creates a new theme handler.
func NewThemeHandler(deps ThemeDependencies) *ThemeHandler {
	return &ThemeHandler{deps: deps}
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type themeResponse struct {
	ClientID string `json:"client_id"`
	Theme    string `json:"theme"`
}

// clientID identifies the caller by header, then cookie. A caller with
// neither gets a fresh id in a cookie.
func clientID(w http.ResponseWriter, r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(clientIDCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     clientIDCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   clientCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// prefersDark reads the client hint, e.g. `Sec-CH-Prefers-Color-Scheme: "dark"`.
func prefersDark(r *http.Request) bool {
	v := strings.Trim(strings.TrimSpace(r.Header.Get(colorSchemeHeader)), `"`)
	return strings.EqualFold(v, "dark")
}

// HandleTheme handles GET and PUT /theme requests.
func (h *ThemeHandler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	const op = "api.theme"
	w.Header().Set("Accept-CH", colorSchemeHeader)
	w.Header().Add("Vary", colorSchemeHeader)

	switch r.Method {
	case http.MethodGet:
		id := clientID(w, r)
		th, err := h.deps.Theme(r.Context(), id, prefersDark(r))
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, themeResponse{ClientID: id, Theme: string(th)})
	case http.MethodPut:
		var req themeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		th, err := session.ParseTheme(req.Theme)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		id := clientID(w, r)
		if err := h.deps.SetTheme(r.Context(), id, th); err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, themeResponse{ClientID: id, Theme: string(th)})
	default:
		http.NotFound(w, r)
	}
}

// HandleToggle handles POST /theme/toggle requests.
func (h *ThemeHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	const op = "api.theme_toggle"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id := clientID(w, r)
	th, err := h.deps.ToggleTheme(r.Context(), id, prefersDark(r))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{ClientID: id, Theme: string(th)})
}
