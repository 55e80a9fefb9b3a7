package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clefbook/clefbook-api/internal/service"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	if metrics == nil {
		return &MetricsHandler{}
	}
	return &MetricsHandler{
		handler: promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
	}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.handler == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.handler.ServeHTTP(c.Writer, c.Request)
}
