package handlers

import (
	"net/http"
	"runtime"

	"example.com/venueops/services/booking/internal/metrics"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/gin-gonic/gin"
)

// MetricsHandler handles metrics-related HTTP requests
type MetricsHandler struct {
	metrics *metrics.Metrics
	tracer  tracing.Tracer
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metricsCollector *metrics.Metrics, tracer tracing.Tracer) *MetricsHandler {
	return &MetricsHandler{
		metrics: metricsCollector,
		tracer:  tracer,
	}
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-metrics")
	defer h.tracer.EndTransaction(txn)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	all := h.metrics.GetAllMetrics()
	all["runtime"] = gin.H{
		"goroutines":      runtime.NumGoroutine(),
		"heap_alloc_mb":   memStats.HeapAlloc / 1024 / 1024,
		"total_alloc_mb":  memStats.TotalAlloc / 1024 / 1024,
		"gc_cycles_total": memStats.NumGC,
	}

	c.JSON(http.StatusOK, all)
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", h.HandleGetMetrics)
}
