// Package main is the entry point for the ptyhost server.
//
// ptyhost spawns one shell per terminal tab on a pseudo-terminal and
// exposes it to a front end:
//
//	Front end → REST (/shells)        → PTY registry → shell
//	          → WebSocket (/stream)   ↗
//
// The server provides:
//   - REST API for creating, writing, reading, resizing and closing shells
//   - WebSocket streaming of shell output
//   - Service provider registry (terminal and system tools)
//   - Prometheus metrics and rate limiting
//
// Configuration:
//   - Defaults for development
//   - TOML file (PTYHOST_CONFIG or --config)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Production mode
//	./ptyhost --port 8000 --shell /bin/bash
//
//	# Development mode (colored logs, debug level)
//	./ptyhost --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, closing every shell
package main
