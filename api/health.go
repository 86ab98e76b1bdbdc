package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is one health-checked dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NamedPinger pairs a dependency with its name in the health map.
type NamedPinger struct {
	Name   string
	Pinger Pinger
}

// Health reports per-dependency status as a simple ok/error map.
type Health struct {
	deps   []NamedPinger
	logger *slog.Logger
}

// NewHealth creates the health handler over the given dependencies.
func NewHealth(deps []NamedPinger, logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	return &Health{deps: deps, logger: logger}
}

// Check handles GET /health. Every dependency is pinged with a short
// timeout; any failure turns the overall status into 503 with the failing
// dependencies named in the map.
func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	statuses := make(map[string]any, len(h.deps))
	healthy := true
	for _, dep := range h.deps {
		if err := dep.Pinger.Ping(ctx); err != nil {
			h.logger.Warn("dependency unhealthy", "dependency", dep.Name, "error", err)
			statuses[dep.Name] = map[string]string{"status": "error", "error": err.Error()}
			healthy = false
			continue
		}
		statuses[dep.Name] = map[string]string{"status": "ok"}
	}

	if healthy {
		writeJSON(w, http.StatusOK, Response{Status: "ok", Message: "healthy", Data: statuses}, h.logger)
		return
	}
	writeJSON(w, http.StatusServiceUnavailable,
		Response{Status: "error", Message: "one or more dependencies are down", Data: statuses}, h.logger)
}
