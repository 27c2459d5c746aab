package api

import (
	"context"
	"net/http"

	"github.com/okian/whattoeat/internal/domain/model"
	"github.com/okian/whattoeat/internal/domain/types"
)

// DrawDependencies makes one-off draws.
type DrawDependencies interface {
	Draw(ctx context.Context, source string) (types.Draw, error)
}

// DrawHandler handles draw requests.
type DrawHandler struct {
	deps DrawDependencies
}

// NewDrawHandler creates a new draw handler.
func NewDrawHandler(deps DrawDependencies) *DrawHandler {
	return &DrawHandler{deps: deps}
}

// HandlePostDraw handles POST /draw requests.
func (h *DrawHandler) HandlePostDraw(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_draw"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	d, err := h.deps.Draw(r.Context(), model.SourceAPI)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
