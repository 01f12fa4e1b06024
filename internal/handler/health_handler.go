package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// HealthChecker produces a health report.
type HealthChecker interface {
	Check(ctx context.Context) *service.HealthReport
}

type HealthHandler struct {
	health HealthChecker
}

func NewHealthHandler(health HealthChecker) *HealthHandler {
	return &HealthHandler{health: health}
}

// Health godoc
// GET /health
// 200 when PostgreSQL and Redis are reachable, 503 otherwise. The body is the
// full report in both cases.
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
