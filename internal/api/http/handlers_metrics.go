package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackServiceOperation times a tool execution. Call the returned function
// with the execution error when done.
func (hm *HandlerMetrics) TrackServiceOperation(toolID string) func(error) {
	start := time.Now()
	serviceID, _, _ := strings.Cut(toolID, ".")
	return func(err error) {
		if hm == nil {
			return
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		hm.metrics.RecordServiceCall(serviceID, toolID, status, time.Since(start))
	}
}

// MetricsJSON returns the current counters as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	var snapshot monitoring.Snapshot
	if h.metrics != nil {
		snapshot = h.metrics.metrics.Snapshot()
	}

	body := gin.H{
		"timestamp": time.Now(),
		"backend":   snapshot,
		"sessions":  h.sessions.Len(),
	}
	if snapshot.TotalRequests > 0 {
		body["error_rate"] = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}
	if h.breaker != nil {
		counts := h.breaker.Counts()
		body["spawn_breaker"] = gin.H{
			"state":                h.breaker.State().String(),
			"consecutive_failures": counts.ConsecutiveFailures,
			"total_failures":       counts.TotalFailures,
		}
	}

	c.JSON(http.StatusOK, body)
}
