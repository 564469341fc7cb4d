package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
)

// FileEnv names the environment variable that points at an optional TOML file.
const FileEnv = "PTYHOST_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Terminal  TerminalConfig  `toml:"terminal"`
	Logging   LogConfig       `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	CORS      CORSConfig      `toml:"cors"`
	Breaker   BreakerConfig   `toml:"breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" toml:"port"`
	Host string `envconfig:"HOST" toml:"host"`
}

// TerminalConfig controls the shells started for each tab.
type TerminalConfig struct {
	Shell        string   `envconfig:"PTY_SHELL" toml:"shell"`
	Args         []string `envconfig:"PTY_ARGS" toml:"args"`
	Term         string   `envconfig:"PTY_TERM" toml:"term"`
	WorkDir      string   `envconfig:"PTY_WORKDIR" toml:"workdir"`
	Env          []string `envconfig:"PTY_ENV" toml:"env"`
	Rows         uint16   `envconfig:"PTY_ROWS" toml:"rows"`
	Cols         uint16   `envconfig:"PTY_COLS" toml:"cols"`
	ReadTimeout  Duration `envconfig:"PTY_READ_TIMEOUT" toml:"read_timeout"`
	WriteTimeout Duration `envconfig:"PTY_WRITE_TIMEOUT" toml:"write_timeout"`
	CloseGrace   Duration `envconfig:"PTY_CLOSE_GRACE" toml:"close_grace"`
	// PollInterval is how often streaming clients are fed new output.
	PollInterval Duration `envconfig:"PTY_POLL_INTERVAL" toml:"poll_interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" toml:"origins"`
}

// BreakerConfig tunes the spawn circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32   `envconfig:"BREAKER_MAX_FAILURES" toml:"max_failures"`
	OpenTimeout Duration `envconfig:"BREAKER_OPEN_TIMEOUT" toml:"open_timeout"`
}

// Duration is a time.Duration written as "250ms" in files and variables.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds configuration from defaults, then the file named by
// PTYHOST_CONFIG if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the values present in a TOML file onto cfg.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Terminal: TerminalConfig{
			Shell:        "/bin/sh",
			Term:         "xterm-256color",
			Rows:         30,
			Cols:         120,
			ReadTimeout:  Duration{10 * time.Millisecond},
			WriteTimeout: Duration{5 * time.Second},
			CloseGrace:   Duration{2 * time.Second},
			PollInterval: Duration{50 * time.Millisecond},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: Duration{10 * time.Second},
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Terminal.Shell == "" {
		errs = append(errs, errors.New("terminal shell is required"))
	}
	if c.Terminal.Rows == 0 || c.Terminal.Cols == 0 {
		errs = append(errs, errors.New("terminal rows and cols must be positive"))
	}
	for name, d := range map[string]Duration{
		"read_timeout":  c.Terminal.ReadTimeout,
		"write_timeout": c.Terminal.WriteTimeout,
		"close_grace":   c.Terminal.CloseGrace,
		"poll_interval": c.Terminal.PollInterval,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("terminal %s must be positive", name))
		}
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate limit must be positive when enabled"))
	}
	return errors.Join(errs...)
}

// PTY converts the terminal section into registry configuration.
func (c *Config) PTY() pty.Config {
	t := c.Terminal
	return pty.Config{
		Shell:        t.Shell,
		Args:         t.Args,
		Term:         t.Term,
		Dir:          t.WorkDir,
		Env:          t.Env,
		Rows:         t.Rows,
		Cols:         t.Cols,
		ReadTimeout:  t.ReadTimeout.Duration,
		WriteTimeout: t.WriteTimeout.Duration,
		CloseGrace:   t.CloseGrace.Duration,
	}
}

// BreakerSettings converts the breaker section into breaker settings.
func (c *Config) BreakerSettings() resilience.Settings {
	return resilience.Settings{
		MaxFailures: c.Breaker.MaxFailures,
		OpenTimeout: c.Breaker.OpenTimeout.Duration,
	}
}
