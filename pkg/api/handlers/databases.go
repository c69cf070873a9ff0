package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/bufferdb/pkg/db"
)

// DatabaseHandler lists databases and their tables.
type DatabaseHandler struct {
	registry Registry
}

func NewDatabaseHandler(registry Registry) *DatabaseHandler {
	return &DatabaseHandler{registry: registry}
}

// List handles GET /api/v2/databases.
func (h *DatabaseHandler) List(w http.ResponseWriter, r *http.Request) {
	out := make([]db.Stats, 0, h.registry.Len())
	for _, name := range h.registry.Names() {
		d, ok := getDatabaseOrError(w, h.registry, name)
		if !ok {
			return
		}
		out = append(out, d.Stats())
	}
	writeJSON(w, http.StatusOK, okResponse(out))
}

// Tables handles GET /api/v2/databases/{name}/tables.
func (h *DatabaseHandler) Tables(w http.ResponseWriter, r *http.Request) {
	d, ok := getDatabaseOrError(w, h.registry, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, okResponse(d.TableNames()))
}
