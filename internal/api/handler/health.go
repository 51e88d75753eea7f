package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new health handler. checks run on every request.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health returns the health status of the service and its dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(gin.H, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := gin.H{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	c.JSON(status, body)
}
