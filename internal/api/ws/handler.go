package ws

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	sendQueue  = 16
	maxDrain   = 16
	closeGrace = time.Second
)

// Close reasons carried in the normal-closure frame.
const (
	ReasonSessionClosed = "session closed"
	ReasonShellExited   = "shell exited"
)

// Sessions is the part of *pty.Registry the stream drives.
type Sessions interface {
	Write(id string, data []byte) error
	Read(id string) string
	Resize(id string, rows, cols uint16) error
	Info(id string) (pty.Info, bool)
}

// Config controls polling and origin checks.
type Config struct {
	// PollInterval is how often the shell is read for output.
	PollInterval time.Duration
	// AllowOrigins lists browser origins allowed to attach. Empty or "*"
	// allows any origin.
	AllowOrigins []string
}

// Frame is a server to client message, sent as a JSON text frame.
type Frame struct {
	Type     string `json:"type"`
	TabID    string `json:"tab_id,omitempty"`
	ConnID   string `json:"conn_id,omitempty"`
	Data     string `json:"data,omitempty"`
	Rows     uint16 `json:"rows,omitempty"`
	Cols     uint16 `json:"cols,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Control is a client to server text message. Binary frames carry raw input.
type Control struct {
	Type string `json:"type"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Data string `json:"data,omitempty"`
}

// Handler attaches WebSocket clients to tab shells
type Handler struct {
	sessions Sessions
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions Sessions, cfg Config) *Handler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	h := &Handler{
		sessions: sessions,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// WithLogger sets the logger
func (h *Handler) WithLogger(logger *zap.Logger) *Handler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics sets the metrics collector
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// checkOrigin admits non-browser clients (no Origin header) and listed origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleConnection upgrades GET /shells/:id/stream and pumps the shell
// until the client leaves, the tab is closed or the shell exits.
func (h *Handler) HandleConnection(c *gin.Context) {
	tabID := c.Param("id")
	info, ok := h.sessions.Info(tabID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("tab_id", tabID), zap.Error(err))
		return
	}
	defer conn.Close()

	a := &attachment{
		Handler: h,
		conn:    conn,
		tabID:   tabID,
		connID:  uuid.NewString(),
		out:     make(chan Frame, sendQueue),
		done:    make(chan struct{}),
	}
	a.logger = h.logger.With(zap.String("tab_id", tabID), zap.String("conn_id", a.connID))

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()
	a.logger.Info("Client attached")

	go a.readPump()
	reason := a.writePump(info)
	a.logger.Info("Client detached", zap.String("reason", reason))
}

// attachment is one WebSocket client bound to one tab.
type attachment struct {
	*Handler
	conn   *websocket.Conn
	tabID  string
	connID string
	logger *zap.Logger

	// out carries replies from readPump; only writePump writes to conn.
	out  chan Frame
	done chan struct{}
}

// readPump forwards client input until the connection fails.
func (a *attachment) readPump() {
	defer close(a.done)

	a.conn.SetReadLimit(utils.MaxWriteSize)
	a.conn.SetReadDeadline(time.Now().Add(pongWait))
	a.conn.SetPongHandler(func(string) error {
		return a.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, msg, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			a.metrics.RecordWSMessage("in", "binary")
			a.write(msg)
		case websocket.TextMessage:
			a.metrics.RecordWSMessage("in", "text")
			a.control(msg)
		}
	}
}

func (a *attachment) write(data []byte) {
	if err := a.sessions.Write(a.tabID, data); err != nil {
		a.reply(Frame{Type: "error", Message: err.Error()})
	}
}

func (a *attachment) control(msg []byte) {
	if len(msg) > utils.MaxControlMsg {
		a.reply(Frame{Type: "error", Message: "control message too large"})
		return
	}

	var ctl Control
	if err := sonic.Unmarshal(msg, &ctl); err != nil {
		a.reply(Frame{Type: "error", Message: "invalid control message"})
		return
	}

	switch ctl.Type {
	case "resize":
		if err := a.sessions.Resize(a.tabID, ctl.Rows, ctl.Cols); err != nil {
			a.reply(Frame{Type: "error", Message: err.Error()})
			return
		}
		a.reply(Frame{Type: "resized", Rows: ctl.Rows, Cols: ctl.Cols})
	case "input":
		a.write([]byte(ctl.Data))
	case "ping":
		a.reply(Frame{Type: "pong"})
	default:
		a.reply(Frame{Type: "error", Message: fmt.Sprintf("unknown message type %q", ctl.Type)})
	}
}

// reply queues a frame for writePump, dropping it if the client is not
// keeping up.
func (a *attachment) reply(f Frame) {
	select {
	case a.out <- f:
	default:
		a.logger.Debug("Dropping reply, send queue full", zap.String("type", f.Type))
	}
}

// writePump polls the shell and owns every write to the connection. It
// returns why the attachment ended.
func (a *attachment) writePump(info pty.Info) string {
	poll := time.NewTicker(a.cfg.PollInterval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := a.send(Frame{Type: "attached", TabID: a.tabID, ConnID: a.connID, Rows: info.Rows, Cols: info.Cols}); err != nil {
		return "write failed"
	}

	for {
		select {
		case <-a.done:
			return "client disconnected"

		case f := <-a.out:
			if err := a.send(f); err != nil {
				return "write failed"
			}

		case <-ping.C:
			a.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return "ping failed"
			}

		case <-poll.C:
			if data := a.sessions.Read(a.tabID); data != "" {
				if err := a.send(Frame{Type: "output", Data: data}); err != nil {
					return "write failed"
				}
			}

			info, ok := a.sessions.Info(a.tabID)
			if !ok {
				a.finish(ReasonSessionClosed)
				return ReasonSessionClosed
			}
			if info.Exited {
				a.drain()
				code := info.ExitCode
				a.send(Frame{Type: "exit", ExitCode: &code})
				a.finish(fmt.Sprintf("%s: %d", ReasonShellExited, code))
				return ReasonShellExited
			}
		}
	}
}

// drain forwards output the shell printed before exiting.
func (a *attachment) drain() {
	for i := 0; i < maxDrain; i++ {
		data := a.sessions.Read(a.tabID)
		if data == "" {
			return
		}
		if a.send(Frame{Type: "output", Data: data}) != nil {
			return
		}
	}
}

func (a *attachment) send(f Frame) error {
	payload, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := a.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		a.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	a.metrics.RecordWSMessage("out", f.Type)
	return nil
}

// finish sends a normal-closure frame and waits briefly for the client to
// answer it.
func (a *attachment) finish(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	err := a.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return
	}

	select {
	case <-a.done:
	case <-time.After(closeGrace):
	}
}
