// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/whattoeat/internal/adapters/repository"
	service "github.com/okian/whattoeat/internal/app"
	"github.com/okian/whattoeat/internal/domain/selector"
	"github.com/okian/whattoeat/internal/domain/session"
)

const defaultMaxHistoryLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CatalogDependencies
	DrawDependencies
	SessionDependencies
	StreamDependencies
	ThemeDependencies
	HistoryDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	catalogHandler   *CatalogHandler
	drawHandler      *DrawHandler
	sessionsHandler  *SessionsHandler
	streamHandler    *StreamHandler
	themeHandler     *ThemeHandler
	historyHandler   *HistoryHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxHistoryLimit int) *Server {
	if maxHistoryLimit < 1 {
		maxHistoryLimit = defaultMaxHistoryLimit
	}
	return &Server{
		healthHandler:    NewHealthHandler(statsProvider),
		statsHandler:     NewStatsHandler(statsProvider),
		catalogHandler:   NewCatalogHandler(deps),
		drawHandler:      NewDrawHandler(deps),
		sessionsHandler:  NewSessionsHandler(deps),
		streamHandler:    NewStreamHandler(deps),
		themeHandler:     NewThemeHandler(deps),
		historyHandler:   NewHistoryHandler(deps, maxHistoryLimit),
		dashboardHandler: newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/catalog", MetricsMiddleware(s.catalogHandler.HandleGetCatalog, "catalog"))
	mux.HandleFunc("/catalog/groups", MetricsMiddleware(s.catalogHandler.HandleGetGroups, "catalog_groups"))
	mux.HandleFunc("/draw", MetricsMiddleware(s.drawHandler.HandlePostDraw, "draw"))

	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
	mux.HandleFunc("/sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleSession, "session"))
	mux.HandleFunc("/sessions/{id}/commands", MetricsMiddleware(s.sessionsHandler.HandleCommand, "session_commands"))
	mux.HandleFunc("/sessions/{id}/stream", MetricsMiddleware(s.streamHandler.HandleStream, "session_stream"))

	mux.HandleFunc("/theme", MetricsMiddleware(s.themeHandler.HandleTheme, "theme"))
	mux.HandleFunc("/theme/toggle", MetricsMiddleware(s.themeHandler.HandleToggle, "theme_toggle"))

	mux.HandleFunc("/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
	mux.HandleFunc("/history/vendors", MetricsMiddleware(s.historyHandler.HandleGetVendorCounts, "history_vendors"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, service.ErrInvalidCommand),
		errors.Is(err, service.ErrInvalidLimit),
		errors.Is(err, service.ErrInvalidClient),
		errors.Is(err, session.ErrUnknownTheme),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	case errors.Is(err, service.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, "too_many_sessions", Wrap(op, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, repository.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", Wrap(op, err))
	case errors.Is(err, selector.ErrInvalidInput):
		writeError(w, http.StatusConflict, "empty_catalog", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
