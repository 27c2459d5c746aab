package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/whattoeat/internal/domain/session"
	"github.com/okian/whattoeat/internal/domain/types"
)

// SessionDependencies drives session state machines.
type SessionDependencies interface {
	CreateSession(ctx context.Context) (types.Session, error)
	Session(ctx context.Context, id string) (types.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Command(ctx context.Context, id string, cmd session.Command, requestID string) (types.Session, bool, error)
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// commandRequest mirrors the OpenAPI schema for POST /sessions/{id}/commands.
type commandRequest struct {
	Command   string `json:"command"`
	RequestID string `json:"request_id"`
}

func (c commandRequest) validate() (session.Command, error) {
	if strings.TrimSpace(c.Command) == "" {
		return "", errors.New("missing command")
	}
	return session.ParseCommand(c.Command)
}

type commandResponse struct {
	types.Session
	Changed bool `json:"changed"`
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s, err := h.deps.CreateSession(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, s)
}

// HandleSession handles GET and DELETE /sessions/{id} requests.
func (h *SessionsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session"
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		s, err := h.deps.Session(r.Context(), id)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	case http.MethodDelete:
		if err := h.deps.DeleteSession(r.Context(), id); err != nil {
			writeServiceError(w, op, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

// HandleCommand handles POST /sessions/{id}/commands requests.
func (h *SessionsHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_command"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	cmd, err := req.validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if rid := r.Header.Get("Idempotency-Key"); req.RequestID == "" && rid != "" {
		req.RequestID = rid
	}
	s, changed, err := h.deps.Command(r.Context(), r.PathValue("id"), cmd, req.RequestID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Session: s, Changed: changed})
}
