package system

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/types"
)

const maxLogEntries = 1000

// SessionCounter reports how many shells are live.
type SessionCounter interface {
	Len() int
}

// LevelController reads and changes the server's minimum log level.
type LevelController interface {
	Level() string
	SetLevel(level string) error
}

// Provider implements host information and front-end logging
type Provider struct {
	startTime time.Time
	sessions  SessionCounter
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	level     LevelController
	logs      *CircularLogBuffer
}

// CircularLogBuffer is a thread-safe ring of the most recent log entries
type CircularLogBuffer struct {
	entries []*LogEntry
	head    int
	size    int
	mu      sync.RWMutex
}

// LogEntry is one message reported by a front end
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	ClientID  string    `json:"client_id,omitempty"`
	TabID     string    `json:"tab_id,omitempty"`
}

// NewProvider creates a system provider. metrics and logger may be nil.
func NewProvider(sessions SessionCounter, metrics *monitoring.Metrics, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		startTime: time.Now(),
		sessions:  sessions,
		metrics:   metrics,
		logger:    logger,
		logs:      NewCircularLogBuffer(maxLogEntries),
	}
}

// WithLevel lets system.set_log_level change the server log level.
func (s *Provider) WithLevel(level LevelController) *Provider {
	s.level = level
	return s
}

// NewCircularLogBuffer creates a buffer holding at most maxSize entries
func NewCircularLogBuffer(maxSize int) *CircularLogBuffer {
	return &CircularLogBuffer{entries: make([]*LogEntry, maxSize)}
}

// Add inserts an entry, overwriting the oldest once full
func (cb *CircularLogBuffer) Add(entry *LogEntry) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.entries[cb.head] = entry
	cb.head = (cb.head + 1) % len(cb.entries)
	if cb.size < len(cb.entries) {
		cb.size++
	}
}

// GetRecent returns up to limit entries, newest first, optionally filtered by level
func (cb *CircularLogBuffer) GetRecent(limit int, levelFilter string) []LogEntry {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if limit > cb.size {
		limit = cb.size
	}

	result := make([]LogEntry, 0, limit)
	for i := 0; i < cb.size && len(result) < limit; i++ {
		idx := (cb.head - 1 - i + len(cb.entries)) % len(cb.entries)
		entry := cb.entries[idx]
		if entry != nil && (levelFilter == "" || entry.Level == levelFilter) {
			result = append(result, *entry)
		}
	}
	return result
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Host information, health and front-end logging",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"logging",
			"monitoring",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get host and session statistics",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.time",
				Name:        "Current Time",
				Description: "Get current server time",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.log",
				Name:        "Log Message",
				Description: "Record a front-end message in the server log",
				Parameters: []types.Parameter{
					{Name: "message", Type: "string", Description: "Log message", Required: true},
					{Name: "level", Type: "string", Description: "Log level (debug/info/warn/error)", Required: false},
					{Name: "tab_id", Type: "string", Description: "Tab the message relates to", Required: false},
				},
				Returns: "boolean",
			},
			{
				ID:          "system.get_logs",
				Name:        "Get Logs",
				Description: "Retrieve recent front-end log messages",
				Parameters: []types.Parameter{
					{Name: "limit", Type: "number", Description: "Number of entries to retrieve", Required: false},
					{Name: "level", Type: "string", Description: "Filter by log level", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "system.set_log_level",
				Name:        "Set Log Level",
				Description: "Change the server's minimum log level at runtime",
				Parameters: []types.Parameter{
					{Name: "level", Type: "string", Description: "debug, info, warn or error", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info()
	case "system.time":
		return s.currentTime()
	case "system.log":
		return s.log(params, appCtx)
	case "system.get_logs":
		return s.getLogs(params)
	case "system.set_log_level":
		return s.setLogLevel(params)
	case "system.ping":
		return s.ping()
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (s *Provider) info() (*types.Result, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sessions := 0
	if s.sessions != nil {
		sessions = s.sessions.Len()
	}

	data := map[string]interface{}{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"cpus":           runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_alloc":   m.Alloc / 1024 / 1024, // MB
		"memory_sys":     m.Sys / 1024 / 1024,   // MB
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"sessions":       sessions,
		"metrics":        s.metrics.Snapshot(),
	}
	if s.level != nil {
		data["log_level"] = s.level.Level()
	}
	return success(data)
}

func (s *Provider) currentTime() (*types.Result, error) {
	now := time.Now()
	return success(map[string]interface{}{
		"timestamp": now.Unix(),
		"iso":       now.Format(time.RFC3339),
		"unix_ms":   now.UnixMilli(),
	})
}

func (s *Provider) log(params map[string]interface{}, ctx *types.Context) (*types.Result, error) {
	message, ok := params["message"].(string)
	if !ok || message == "" {
		return failure("message required")
	}

	level := "info"
	if l, ok := params["level"].(string); ok && l != "" {
		level = l
	}
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return failure(fmt.Sprintf("invalid level: %s", level))
	}

	entry := &LogEntry{
		Timestamp: time.Now(),
		Level:     zapLevel.String(),
		Message:   message,
	}
	entry.TabID, _ = params["tab_id"].(string)
	if ctx != nil {
		entry.ClientID = ctx.ClientID
	}
	s.logs.Add(entry)

	if ce := s.logger.Check(zapLevel, message); ce != nil {
		ce.Write(
			zap.String("source", "client"),
			zap.String("client_id", entry.ClientID),
			zap.String("tab_id", entry.TabID),
		)
	}

	return success(map[string]interface{}{"logged": true})
}

func (s *Provider) getLogs(params map[string]interface{}) (*types.Result, error) {
	limit := 100
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	levelFilter, _ := params["level"].(string)
	logs := s.logs.GetRecent(limit, levelFilter)

	return success(map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

func (s *Provider) setLogLevel(params map[string]interface{}) (*types.Result, error) {
	if s.level == nil {
		return failure("log level is not adjustable")
	}
	level, _ := params["level"].(string)
	if level == "" {
		return failure("level required")
	}

	previous := s.level.Level()
	if err := s.level.SetLevel(level); err != nil {
		return failure(fmt.Sprintf("invalid level: %s", level))
	}
	s.logger.Info("Log level changed",
		zap.String("from", previous),
		zap.String("to", s.level.Level()),
	)

	return success(map[string]interface{}{
		"previous": previous,
		"level":    s.level.Level(),
	})
}

func (s *Provider) ping() (*types.Result, error) {
	return success(map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().Unix(),
	})
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	return types.Failure(message), nil
}
