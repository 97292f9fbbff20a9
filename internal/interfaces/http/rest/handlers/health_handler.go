package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"echo-server/pkg/api"
)

const (
	StatusHealthy  = "healthy"
	StatusReady    = "ready"
	StatusDraining = "draining"
)

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Sessions  *int      `json:"websocket_sessions,omitempty"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	version  string
	started  time.Time
	sessions func() int
	draining atomic.Bool
}

// NewHealthHandler creates a health handler. sessions reports the number of
// open WebSocket sessions and may be nil.
func NewHealthHandler(version string, sessions func() int) *HealthHandler {
	return &HealthHandler{
		version:  version,
		started:  time.Now(),
		sessions: sessions,
	}
}

// SetDraining makes the readiness probe fail while the server shuts down.
func (h *HealthHandler) SetDraining() {
	h.draining.Store(true)
}

// Health always answers 200 while the process can serve requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.response(StatusHealthy))
}

// Ready answers 503 once the server started draining.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		api.Success(w, http.StatusServiceUnavailable, h.response(StatusDraining))
		return
	}
	api.Success(w, http.StatusOK, h.response(StatusReady))
}

func (h *HealthHandler) response(status string) HealthResponse {
	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	if h.sessions != nil {
		n := h.sessions()
		resp.Sessions = &n
	}
	return resp
}
