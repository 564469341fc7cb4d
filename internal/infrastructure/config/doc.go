// Package config provides 12-factor configuration management for ptyhost.
//
// Values are layered: built-in defaults, then an optional TOML file named by
// PTYHOST_CONFIG, then environment variables. CLI flags in cmd/server
// override all three.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Terminal: shell, geometry and I/O timeouts for new tabs
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - CORS: allowed browser origins
//   - Breaker: spawn circuit breaker thresholds
//
// Example file:
//
//	[terminal]
//	shell = "/bin/bash"
//	args = ["-l"]
//	read_timeout = "15ms"
//
// Environment Variables:
//   - PORT, HOST
//   - PTY_SHELL, PTY_ARGS, PTY_TERM, PTY_WORKDIR, PTY_ENV, PTY_ROWS, PTY_COLS
//   - PTY_READ_TIMEOUT, PTY_WRITE_TIMEOUT, PTY_CLOSE_GRACE, PTY_POLL_INTERVAL
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ORIGINS, BREAKER_MAX_FAILURES, BREAKER_OPEN_TIMEOUT
package config
