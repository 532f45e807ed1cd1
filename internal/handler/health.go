package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"sheetvend-api/pkg/response"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves liveness and status endpoints.
type Handler struct {
	service   string
	version   string
	grid      Pinger
	startTime time.Time
}

// New creates a new handler. grid may be nil.
func New(service, version string, grid Pinger) *Handler {
	return &Handler{
		service:   service,
		version:   version,
		grid:      grid,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Grid     string  `json:"grid"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for bot monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status. A down grid degrades the status but the
// endpoint still answers 200 so monitors can read the checks.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	status, grid := "ok", "not_configured"
	pingStart := time.Now()
	if h.grid != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		err := h.grid.Ping(ctx)
		cancel()
		if err != nil {
			status, grid = "degraded", "unavailable"
		} else {
			grid = "ok"
		}
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        time.Since(pingStart).Milliseconds(),
		Checks: StatusChecks{
			Grid:     grid,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	})
}
