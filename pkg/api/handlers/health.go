package handlers

import (
	"net/http"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	registry Registry
	version  string
}

// NewHealthHandler creates a new health handler. registry may be nil, in
// which case readiness reports unhealthy.
func NewHealthHandler(registry Registry, version string) *HealthHandler {
	return &HealthHandler{registry: registry, version: version}
}

// Ping handles GET /ping with 204 and the server version header, the way
// line protocol clients probe a server.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Bufferdb-Version", h.version)
	w.WriteHeader(http.StatusNoContent)
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "bufferdb",
		"version": h.version,
	}))
}

// Readiness handles GET /health/ready. The listener only serves after
// recovery, so an initialised registry means ready, even when empty.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"databases": h.registry.Len(),
	}))
}
