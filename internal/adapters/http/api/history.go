package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/whattoeat/internal/domain/types"
)

const defaultHistoryLimit = 20

// HistoryDependencies reads persisted draws.
type HistoryDependencies interface {
	History(ctx context.Context, limit int) ([]types.Draw, error)
	VendorCounts(ctx context.Context) ([]types.VendorCount, error)
}

// HistoryHandler handles history requests.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /history?limit=N requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := min(defaultHistoryLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	draws, err := h.deps.History(r.Context(), n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, draws)
}

// HandleGetVendorCounts handles GET /history/vendors requests.
func (h *HistoryHandler) HandleGetVendorCounts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_vendor_counts"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	counts, err := h.deps.VendorCounts(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if counts == nil {
		counts = []types.VendorCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}
