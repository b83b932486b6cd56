package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"halaqa-points-api/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	service string
	version string
	checks  []ReadinessCheck
}

// New creates a new handler.
func New(service, version string, checks ...ReadinessCheck) *Handler {
	return &Handler{service: service, version: version, checks: checks}
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

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) runChecks(ctx context.Context) ([]Check, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	checks := []Check{{Name: "api", Status: "ok"}}
	ready := true
	for _, c := range h.checks {
		result := Check{Name: c.Name, Status: "ok"}
		if err := c.Check(ctx); err != nil {
			result.Status = "error"
			result.Error = err.Error()
			ready = false
		}
		checks = append(checks, result)
	}
	return checks, ready
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusResponse represents the unified status response for uptime monitoring
type StatusResponse struct {
	Service       string  `json:"service"`
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	PingMS        int64   `json:"ping_ms"`
	MemoryMB      float64 `json:"memory_mb"`
	Checks        []Check `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks, ready := h.runChecks(r.Context())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	status := "ok"
	if !ready {
		status = "degraded"
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		PingMS:        time.Since(start).Milliseconds(),
		MemoryMB:      float64(int(memoryMB*100)) / 100,
		Checks:        checks,
	})
}
