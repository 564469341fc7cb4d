/*
Package monitoring provides Prometheus metrics for the PTY host.

# Overview

Metrics cover HTTP traffic, the PTY session lifecycle (live, created, closed,
per-operation failures, bytes in and out) and attached WebSocket clients.
Each collector owns a private registry exposed through Handler.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "write")
	err := registry.Write(id, data)
	timer.Stop(err)
*/
package monitoring
