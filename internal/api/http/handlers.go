package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/service"
	"github.com/GriffinCanCode/ptyhost/internal/utils"
)

// Sessions is the part of *pty.Registry the REST API drives.
type Sessions interface {
	Create(ctx context.Context, id string, opts pty.Options) (pty.Info, error)
	Write(id string, data []byte) error
	Read(id string) string
	Resize(id string, rows, cols uint16) error
	Close(id string)
	Info(id string) (pty.Info, bool)
	List() []pty.Info
	Len() int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions  Sessions
	registry  *service.Registry
	metrics   *HandlerMetrics
	breaker   *resilience.Breaker
	logger    *zap.Logger
	startedAt time.Time
}

// NewHandlers creates a new handler set. metrics and logger may be nil.
func NewHandlers(sessions Sessions, registry *service.Registry, metrics *HandlerMetrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions:  sessions,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// WithBreaker reports the spawn breaker state on the health endpoint.
func (h *Handlers) WithBreaker(breaker *resilience.Breaker) *Handlers {
	h.breaker = breaker
	return h
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "ptyhost",
		"status":  "running",
	})
}

// Health reports liveness. A tripped spawn breaker marks the service
// degraded but still answers 200 so existing tabs keep working.
func (h *Handlers) Health(c *gin.Context) {
	status := "healthy"
	body := gin.H{
		"sessions":       h.sessions.Len(),
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
	}
	if h.breaker != nil {
		state := h.breaker.State()
		body["spawn_breaker"] = state.String()
		if state == resilience.StateOpen {
			status = "degraded"
		}
	}
	body["status"] = status

	c.JSON(http.StatusOK, body)
}

// bindJSON decodes a size-limited body into v. An empty body is accepted
// when optional is set.
func bindJSON(c *gin.Context, v interface{}, optional bool) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxJSONSize)
	err := c.ShouldBindJSON(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// failure maps a registry or tool error to a status code.
func failure(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pty.ErrInvalidID),
		errors.Is(err, service.ErrInvalidParams),
		errors.Is(err, service.ErrInvalidToolID):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrServiceNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
