package api

import (
	"context"
	"net/http"
	"time"

	"pointflow/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is one dependency reported by /health. A failing critical
// dependency makes the service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
	logger  logger.Logger
}

type HealthResponse struct {
	Status    string                       `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Services  map[string]map[string]string `json:"services"`
	Version   string                       `json:"version"`
}

func NewHealthHandler(checks []HealthCheck, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
		logger:  log.WithFields(map[string]interface{}{"component": "health_handler"}),
	}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /health/live", h.LivenessCheck)
	mux.HandleFunc("GET /health/ready", h.ReadinessCheck)
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	services, status := h.run(r.Context())

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   "1.0.0",
	})
}

func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	_, status := h.run(r.Context())

	if status == "unhealthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "not_ready",
			"timestamp": time.Now(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

func (h *HealthHandler) run(ctx context.Context) (map[string]map[string]string, string) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := "healthy"
	services := make(map[string]map[string]string, len(h.checks))

	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "Health check failed", map[string]interface{}{
				"service": check.Name,
				"error":   err.Error(),
			})
			services[check.Name] = map[string]string{"status": "unhealthy", "error": err.Error()}

			if check.Critical {
				status = "unhealthy"
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		services[check.Name] = map[string]string{"status": "healthy"}
	}

	return services, status
}
