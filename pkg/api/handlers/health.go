package handlers

import (
	"net/http"
)

// ReadinessFunc reports whether the server can take traffic. A nil error
// means ready.
type ReadinessFunc func() error

// HealthHandler handles health check endpoints.
//
//   - Liveness probe: is the process serving requests at all?
//   - Readiness probe: is the server accepting and not shutting down?
type HealthHandler struct {
	service string
	ready   ReadinessFunc
}

// NewHealthHandler creates a new health handler. A nil ready func makes
// readiness always fail.
func NewHealthHandler(service string, ready ReadinessFunc) *HealthHandler {
	return &HealthHandler{service: service, ready: ready}
}

// Liveness handles GET /health. Answering at all proves liveness.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": h.service,
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable while the server is starting or draining.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("readiness not configured"))
		return
	}
	if err := h.ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": h.service,
	}))
}
