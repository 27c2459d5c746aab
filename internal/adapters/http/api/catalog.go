package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/whattoeat/internal/domain/catalog"
)

// CatalogDependencies exposes the menu.
type CatalogDependencies interface {
	Catalog() *catalog.Catalog
}

// CatalogHandler serves the read-only menu.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

type vendorResponse struct {
	Name   string   `json:"name"`
	Group  string   `json:"group"`
	Dishes []string `json:"dishes"`
}

// HandleGetCatalog handles GET /catalog[?group=G] requests.
func (h *CatalogHandler) HandleGetCatalog(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_catalog"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c := h.deps.Catalog()
	vendors := c.Vendors()
	if group := strings.TrimSpace(r.URL.Query().Get("group")); group != "" {
		vendors = c.InGroup(group)
		if len(vendors) == 0 {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, fmt.Errorf("unknown group %q", group)))
			return
		}
	}
	out := make([]vendorResponse, len(vendors))
	for i, v := range vendors {
		dishes := make([]string, len(v.Dishes))
		for j, d := range v.Dishes {
			dishes[j] = d.Name
		}
		out[i] = vendorResponse{Name: v.Name, Group: v.Group, Dishes: dishes}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetGroups handles GET /catalog/groups requests.
func (h *CatalogHandler) HandleGetGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Catalog().Groups())
}
