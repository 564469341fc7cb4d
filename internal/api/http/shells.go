package http

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/shared/id"
	"github.com/GriffinCanCode/ptyhost/internal/utils"
)

// CreateShellRequest is the body of POST /shells. Every field is optional.
type CreateShellRequest struct {
	ID   string `json:"id"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

// WriteRequest is the body of POST /shells/:id/write.
type WriteRequest struct {
	Data *string `json:"data" binding:"required"`
	// Encoding is "utf8" (default) or "base64" for raw bytes.
	Encoding string `json:"encoding"`
}

// ResizeRequest is the body of POST /shells/:id/resize.
type ResizeRequest struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// ReadResponse is returned by GET /shells/:id/read. Found is false once the
// tab no longer exists, so pollers can stop without another request.
type ReadResponse struct {
	Data   string `json:"data"`
	Exited bool   `json:"exited"`
	Found  bool   `json:"found"`
}

// CreateShell starts (or replaces) the shell for a tab
func (h *Handlers) CreateShell(c *gin.Context) {
	var req CreateShellRequest
	if err := bindJSON(c, &req, true); err != nil {
		badRequest(c, err)
		return
	}

	if req.ID == "" {
		req.ID = id.NewTabID().String()
	}
	if err := utils.ValidateID(req.ID, "id", true); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateDimension(req.Rows, "rows", false); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateDimension(req.Cols, "cols", false); err != nil {
		badRequest(c, err)
		return
	}

	info, err := h.sessions.Create(c.Request.Context(), req.ID, pty.Options{
		Rows: uint16(req.Rows),
		Cols: uint16(req.Cols),
	})
	if err != nil {
		failure(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// WriteShell sends input to a tab's shell. Unknown tabs are ignored.
func (h *Handlers) WriteShell(c *gin.Context) {
	tabID := c.Param("id")

	var req WriteRequest
	if err := bindJSON(c, &req, false); err != nil {
		badRequest(c, err)
		return
	}

	data := []byte(*req.Data)
	switch req.Encoding {
	case "", "utf8":
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(*req.Data)
		if err != nil {
			badRequest(c, fmt.Errorf("data is not valid base64: %w", err))
			return
		}
		data = decoded
	default:
		badRequest(c, fmt.Errorf("unsupported encoding %q", req.Encoding))
		return
	}
	if err := utils.ValidateWriteSize(data); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.sessions.Write(tabID, data); err != nil {
		failure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tab_id":  tabID,
		"bytes":   len(data),
	})
}

// ReadShell returns whatever output is available without blocking. It never
// fails: an unknown tab or an idle shell both read as empty.
func (h *Handlers) ReadShell(c *gin.Context) {
	tabID := c.Param("id")

	resp := ReadResponse{Data: h.sessions.Read(tabID)}
	if info, ok := h.sessions.Info(tabID); ok {
		resp.Exited = info.Exited
		resp.Found = true
	}

	c.JSON(http.StatusOK, resp)
}

// ResizeShell changes a tab's window size
func (h *Handlers) ResizeShell(c *gin.Context) {
	tabID := c.Param("id")

	var req ResizeRequest
	if err := bindJSON(c, &req, false); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateDimension(req.Rows, "rows", true); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateDimension(req.Cols, "cols", true); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.sessions.Resize(tabID, uint16(req.Rows), uint16(req.Cols)); err != nil {
		failure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tab_id":  tabID,
		"rows":    req.Rows,
		"cols":    req.Cols,
	})
}

// CloseShell terminates a tab's shell. Closing twice is not an error.
func (h *Handlers) CloseShell(c *gin.Context) {
	tabID := c.Param("id")

	h.sessions.Close(tabID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tab_id":  tabID,
	})
}

// ListShells lists live shells
func (h *Handlers) ListShells(c *gin.Context) {
	sessions := h.sessions.List()

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetShell describes one shell
func (h *Handlers) GetShell(c *gin.Context) {
	tabID := c.Param("id")

	info, ok := h.sessions.Info(tabID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, info)
}
