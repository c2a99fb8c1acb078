package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"tradecoach/pkg/logger"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// Check probes one dependency and returns nil when it is usable
type Check func(ctx context.Context) error

type namedCheck struct {
	name string
	// critical checks gate readiness; the others only degrade /health
	critical bool
	check    Check
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	startTime   time.Time
	serviceName string
	version     string

	mu     sync.RWMutex
	checks []namedCheck
}

// New creates a new health check handler
func New(log *logger.Logger, serviceName string, version string) *Handler {
	return &Handler{
		log:         log.With("component", "health"),
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// Register adds a check. Critical checks must pass for readiness.
func (h *Handler) Register(name string, critical bool, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, critical: critical, check: check})
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status      string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service     string                     `json:"service"`
	Version     string                     `json:"version"`
	Uptime      string                     `json:"uptime"`
	Timestamp   string                     `json:"timestamp"`
	Checks      map[string]ComponentHealth `json:"checks"`
	ErrorDetail string                     `json:"error_detail,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	Critical     bool   `json:"critical"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// HandleReadiness checks if service is ready to accept traffic
// Used by Kubernetes readiness probe
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.run(ctx, true)

	statusCode := http.StatusOK
	if status.Status != statusHealthy {
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}

	writeJSON(w, statusCode, status)
}

// HandleHealth returns detailed health status (includes all checks)
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.run(ctx, false)

	statusCode := http.StatusOK
	if status.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, status)
}

// run executes the checks concurrently. With criticalOnly, non-critical checks are skipped.
func (h *Handler) run(ctx context.Context, criticalOnly bool) HealthStatus {
	h.mu.RLock()
	checks := make([]namedCheck, 0, len(h.checks))
	for _, c := range h.checks {
		if criticalOnly && !c.critical {
			continue
		}
		checks = append(checks, c)
	}
	h.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c namedCheck) {
			defer wg.Done()
			results[i] = h.probe(ctx, c)
		}(i, c)
	}
	wg.Wait()

	status := HealthStatus{
		Status:    statusHealthy,
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentHealth, len(checks)),
	}

	var failed []string
	criticalFailed := false
	for i, c := range checks {
		status.Checks[c.name] = results[i]
		if results[i].Status != statusHealthy {
			failed = append(failed, c.name)
			if c.critical {
				criticalFailed = true
			}
		}
	}

	switch {
	case criticalFailed:
		status.Status = statusUnhealthy
	case len(failed) > 0:
		status.Status = statusDegraded
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		status.ErrorDetail = "failing checks: " + strings.Join(failed, ", ")
	}

	return status
}

func (h *Handler) probe(ctx context.Context, c namedCheck) ComponentHealth {
	start := time.Now()
	err := c.check(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Health check failed", "check", c.name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       statusUnhealthy,
			Critical:     c.critical,
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       statusHealthy,
		Critical:     c.critical,
		ResponseTime: elapsed.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
