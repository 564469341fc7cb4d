package http

import "github.com/gin-gonic/gin"

// Register mounts the REST endpoints on router.
func Register(router gin.IRouter, h *Handlers) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	// Shells
	router.POST("/shells", h.CreateShell)
	router.GET("/shells", h.ListShells)
	router.GET("/shells/:id", h.GetShell)
	router.POST("/shells/:id/write", h.WriteShell)
	router.GET("/shells/:id/read", h.ReadShell)
	router.POST("/shells/:id/resize", h.ResizeShell)
	router.DELETE("/shells/:id", h.CloseShell)

	// Service management
	router.GET("/services", h.ListServices)
	router.POST("/services/discover", h.DiscoverServices)
	router.POST("/services/execute", h.ExecuteService)

	// Front-end logs
	router.POST("/logs", h.StreamLogs)

	router.GET("/metrics/json", h.MetricsJSON)
}
