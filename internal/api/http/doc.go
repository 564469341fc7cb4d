// Package http provides the REST API over tab shells and service tools.
//
// Endpoints:
//   - Health: / and /health
//   - Shells: /shells, /shells/:id, /shells/:id/write, /shells/:id/read, /shells/:id/resize
//   - Services: /services, /services/discover, /services/execute
//   - Logs: /logs
//   - Metrics: /metrics/json
//
// Errors are returned as {"error": "..."}: 400 for malformed input, 404 for
// a missing shell on GET /shells/:id, 500 when a pseudo-terminal could not
// be allocated, spawned, written or resized. Reads never fail.
//
// Example Usage:
//
//	handlers := http.NewHandlers(registry, services, http.NewHandlerMetrics(metrics), logger)
//	http.Register(router, handlers)
package http
