package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ptyhost/internal/shared/id"
	"github.com/GriffinCanCode/ptyhost/internal/types"
	"github.com/GriffinCanCode/ptyhost/internal/utils"
)

const discoverLimit = 5

// ExecuteRequest is the body of POST /services/execute.
type ExecuteRequest struct {
	ToolID   string                 `json:"tool_id" binding:"required"`
	Params   map[string]interface{} `json:"params"`
	ClientID string                 `json:"client_id"`
}

// DiscoverRequest is the body of POST /services/discover.
type DiscoverRequest struct {
	Message string `json:"message" binding:"required"`
}

// ListServices lists all available services, optionally filtered by
// category or ranked by an intent string.
func (h *Handlers) ListServices(c *gin.Context) {
	if intent := strings.TrimSpace(c.Query("intent")); intent != "" {
		c.JSON(http.StatusOK, gin.H{
			"query":    intent,
			"services": h.registry.Discover(intent, discoverLimit),
		})
		return
	}

	var category *types.Category
	if categoryStr := c.Query("category"); categoryStr != "" {
		cat := types.Category(categoryStr)
		if cat != types.CategoryTerminal && cat != types.CategorySystem {
			badRequest(c, fmt.Errorf("unknown category %q", categoryStr))
			return
		}
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// DiscoverServices discovers relevant services for a request
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req DiscoverRequest
	if err := bindJSON(c, &req, false); err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Message,
		"services": h.registry.Discover(req.Message, discoverLimit),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req ExecuteRequest
	if err := bindJSON(c, &req, false); err != nil {
		badRequest(c, err)
		return
	}

	if err := utils.ValidateID(req.ToolID, "tool_id", true); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateID(req.ClientID, "client_id", false); err != nil {
		badRequest(c, err)
		return
	}

	appCtx := &types.Context{
		ClientID:  req.ClientID,
		RequestID: id.NewRequestID().String(),
	}

	done := h.metrics.TrackServiceOperation(req.ToolID)
	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	done(err)
	if err != nil {
		failure(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
