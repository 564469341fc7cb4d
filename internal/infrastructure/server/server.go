package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ptyhost/internal/api/http"
	"github.com/GriffinCanCode/ptyhost/internal/api/middleware"
	"github.com/GriffinCanCode/ptyhost/internal/api/ws"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/tracing"
	systemProvider "github.com/GriffinCanCode/ptyhost/internal/providers/system"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/service"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions *pty.Registry
	registry *service.Registry
	breaker  *resilience.Breaker
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a server that spawns shells on native pseudo-terminals.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return New(cfg, logger, pty.NativeSystem{}), nil
}

// New creates a server over an arbitrary pty.System.
func New(cfg *config.Config, logger *logging.Logger, system pty.System) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	logger.Info("Initializing ptyhost",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.String("shell", cfg.Terminal.Shell),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("ptyhost", logger.Component("trace"))

	breakerSettings := cfg.BreakerSettings()
	breakerLogger := logger.Component("breaker")
	breakerSettings.OnStateChange = func(name string, from, to resilience.State) {
		breakerLogger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	breaker := resilience.New("spawn", breakerSettings)

	sessions := pty.NewRegistry(system, cfg.PTY()).
		WithLogger(logger.Component("pty")).
		WithMetrics(metrics).
		WithBreaker(breaker)

	serviceRegistry := service.NewRegistry()
	registerProviders(serviceRegistry, sessions, metrics, logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.Logger(logger.Component("http")))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.CORS.Origins
	router.Use(middleware.CORS(corsConfig))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rateConfig := middleware.DefaultRateLimitConfig()
		rateConfig.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rateConfig.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rateConfig))
	}

	handlers := apihttp.NewHandlers(sessions, serviceRegistry, apihttp.NewHandlerMetrics(metrics), logger.Component("ui")).
		WithBreaker(breaker)
	wsHandler := ws.NewHandler(sessions, ws.Config{
		PollInterval: cfg.Terminal.PollInterval.Duration,
		AllowOrigins: cfg.CORS.Origins,
	}).WithLogger(logger.Component("ws")).WithMetrics(metrics)

	// Register routes
	apihttp.Register(router, handlers)
	router.GET("/shells/:id/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sessions: sessions,
		registry: serviceRegistry,
		breaker:  breaker,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the shell registry.
func (s *Server) Sessions() *pty.Registry {
	return s.sessions
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run listens on the configured address until Shutdown is called.
func (s *Server) Run() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", l.Addr().String()))
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every shell.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}

	s.sessions.CloseAll()
	s.tracer.Close()
	s.logger.Sync()
	return err
}

func registerProviders(registry *service.Registry, sessions *pty.Registry, metrics *monitoring.Metrics, logger *logging.Logger) {
	providers := []service.Provider{
		terminal.NewProvider(sessions),
		systemProvider.NewProvider(sessions, metrics, logger.Component("client")).WithLevel(logger),
	}
	for _, p := range providers {
		if err := registry.Register(p); err != nil {
			logger.Warn("Failed to register provider", zap.String("service", p.Definition().ID), zap.Error(err))
		}
	}
}
