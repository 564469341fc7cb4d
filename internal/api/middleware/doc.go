// Package middleware provides the gin middleware stack of the API server:
// CORS for browser front ends, per-client rate limiting and request logging.
package middleware
