package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusops/student-funds-api/internal/service"
)

// MetricsHandler exposes the Prometheus scrape endpoint.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Register mounts the scrape endpoint on the router.
func (h *MetricsHandler) Register(r gin.IRoutes) {
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
}
