package pty

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/resilience"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls how sessions are spawned and how long I/O may block.
type Config struct {
	Shell string
	Args  []string
	Term  string
	Dir   string
	// Env entries (KEY=VALUE) are appended after the inherited environment
	// and TERM, so they take precedence.
	Env []string

	Rows uint16
	Cols uint16

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CloseGrace   time.Duration
}

// DefaultConfig returns a configuration for a 30x120 /bin/sh session.
func DefaultConfig() Config {
	return Config{
		Shell:        "/bin/sh",
		Term:         "xterm-256color",
		Rows:         30,
		Cols:         120,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		CloseGrace:   2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Shell == "" {
		c.Shell = def.Shell
	}
	if c.Term == "" {
		c.Term = def.Term
	}
	if c.Rows == 0 {
		c.Rows = def.Rows
	}
	if c.Cols == 0 {
		c.Cols = def.Cols
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = def.CloseGrace
	}
	return c
}

// Options are per-session create parameters. Zero fields take the
// registry defaults.
type Options struct {
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// Registry tracks live sessions by tab id.
type Registry struct {
	system  System
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	breaker *resilience.Breaker

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewRegistry creates an empty registry that allocates pairs from system.
func NewRegistry(system System, cfg Config) *Registry {
	return &Registry{
		system:   system,
		cfg:      cfg.withDefaults(),
		logger:   zap.NewNop(),
		sessions: make(map[string]*session),
	}
}

// WithLogger sets the logger
func (r *Registry) WithLogger(logger *zap.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithMetrics sets the metrics collector
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// WithBreaker guards shell spawning with breaker.
func (r *Registry) WithBreaker(breaker *resilience.Breaker) *Registry {
	r.breaker = breaker
	return r
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// Create starts a shell for id. A live session with the same id is replaced
// once the new one is running; if creation fails the old one is kept.
func (r *Registry) Create(ctx context.Context, id string, opts Options) (Info, error) {
	if id == "" {
		return Info{}, newError("create", id, ErrInvalidID, nil)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	size := Size{Rows: opts.Rows, Cols: opts.Cols}
	if size.Rows == 0 {
		size.Rows = r.cfg.Rows
	}
	if size.Cols == 0 {
		size.Cols = r.cfg.Cols
	}

	timer := monitoring.NewTimer(r.metrics, "create")
	s, err := r.open(id, size)
	elapsed := timer.Stop(err)
	if err != nil {
		r.logger.Warn("Failed to create session", zap.String("id", id), zap.Error(err))
		return Info{}, err
	}

	r.mu.Lock()
	prev := r.sessions[id]
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.IncSessionsCreated()
	r.metrics.SetSessionsActive(count)
	info := s.info()
	r.logger.Info("Session created",
		zap.String("id", id),
		zap.Int("pid", info.Pid),
		zap.Uint16("rows", size.Rows),
		zap.Uint16("cols", size.Cols),
		zap.Duration("duration", elapsed))

	if prev != nil {
		r.logger.Info("Replacing existing session", zap.String("id", id), zap.Int("old_pid", prev.proc.Pid()))
		r.release(prev)
	}
	return info, nil
}

// open builds a running session without touching the map. Everything
// allocated so far is released on failure.
func (r *Registry) open(id string, size Size) (*session, error) {
	pair, err := r.system.Open(size)
	if err != nil {
		return nil, newError("create", id, ErrAllocationFailed, err)
	}

	writer, err := pair.TakeWriter()
	if err != nil {
		pair.Close()
		return nil, newError("create", id, ErrAllocationFailed, err)
	}

	reader, err := pair.CloneReader()
	if err != nil {
		writer.Close()
		pair.Close()
		return nil, newError("create", id, ErrAllocationFailed, err)
	}

	cmd := r.command()
	var proc Process
	err = r.breaker.Execute(func() error {
		var spawnErr error
		proc, spawnErr = pair.Spawn(cmd)
		return spawnErr
	})
	if err != nil {
		reader.Close()
		writer.Close()
		pair.Close()
		return nil, newError("create", id, ErrSpawnFailed, err)
	}

	return newSession(id, cmd, size, pair, writer, reader, proc), nil
}

func (r *Registry) command() Command {
	env := append(os.Environ(), "TERM="+r.cfg.Term)
	env = append(env, r.cfg.Env...)
	return Command{
		Path: r.cfg.Shell,
		Args: append([]string(nil), r.cfg.Args...),
		Dir:  r.cfg.Dir,
		Env:  env,
	}
}

// Write sends data to the shell of id. Unknown ids are ignored.
func (r *Registry) Write(id string, data []byte) error {
	s := r.lookup(id)
	if s == nil {
		return nil
	}

	timer := monitoring.NewTimer(r.metrics, "write")
	err := s.write(data, r.cfg.WriteTimeout)
	timer.Stop(err)
	if err != nil {
		r.logger.Warn("Write failed", zap.String("id", id), zap.Error(err))
		return newError("write", id, ErrWriteFailed, err)
	}

	r.metrics.RecordPTYBytes("in", len(data))
	return nil
}

// Read returns whatever output is available for id within the read
// timeout, or "" if there is none, the id is unknown or the read failed.
func (r *Registry) Read(id string) string {
	s := r.lookup(id)
	if s == nil {
		return ""
	}

	text, n, err := s.read(r.cfg.ReadTimeout)
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			r.logger.Debug("Read failed", zap.String("id", id), zap.Error(err))
		}
		return ""
	}

	r.metrics.RecordPTYBytes("out", n)
	return text
}

// Resize changes the window size of id. Unknown ids are ignored.
func (r *Registry) Resize(id string, rows, cols uint16) error {
	s := r.lookup(id)
	if s == nil {
		return nil
	}
	if rows == 0 || cols == 0 {
		return newError("resize", id, ErrResizeFailed, errors.New("rows and cols must be positive"))
	}

	timer := monitoring.NewTimer(r.metrics, "resize")
	err := s.resize(Size{Rows: rows, Cols: cols})
	timer.Stop(err)
	if err != nil {
		r.logger.Warn("Resize failed", zap.String("id", id), zap.Error(err))
		return newError("resize", id, ErrResizeFailed, err)
	}
	return nil
}

// Close ends the session for id. Closing an unknown id does nothing.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.metrics.SetSessionsActive(count)
	r.release(s)
	r.logger.Info("Session closed", zap.String("id", id))
}

// CloseAll ends every session concurrently and waits for them.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	r.metrics.SetSessionsActive(0)

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			r.release(s)
			return nil
		})
	}
	_ = g.Wait()
	if len(sessions) > 0 {
		r.logger.Info("All sessions closed", zap.Int("count", len(sessions)))
	}
}

// Info returns the current state of id.
func (r *Registry) Info(id string) (Info, bool) {
	s := r.lookup(id)
	if s == nil {
		return Info{}, false
	}
	return s.info(), true
}

// List returns all live sessions sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(id string) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// release closes a session that is no longer in the map.
func (r *Registry) release(s *session) {
	if err := s.close(r.cfg.CloseGrace); err != nil {
		r.logger.Warn("Session cleanup incomplete", zap.String("id", s.id), zap.Error(err))
	}
	r.metrics.IncSessionsClosed()
}
