package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
	"github.com/GriffinCanCode/ptyhost/internal/pty"
	"github.com/GriffinCanCode/ptyhost/internal/pty/ptytest"
	"github.com/GriffinCanCode/ptyhost/internal/service"
)

type testServer struct {
	router  *gin.Engine
	sys     *ptytest.System
	reg     *pty.Registry
	metrics *monitoring.Metrics
	logs    *observer.ObservedLogs
	breaker *resilience.Breaker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	metrics := monitoring.NewMetrics()
	breaker := resilience.New("spawn", resilience.Settings{MaxFailures: 2, OpenTimeout: time.Minute})

	sys := ptytest.New()
	reg := pty.NewRegistry(sys, pty.Config{
		ReadTimeout: 20 * time.Millisecond,
		CloseGrace:  100 * time.Millisecond,
	}).WithMetrics(metrics).WithBreaker(breaker)
	t.Cleanup(reg.CloseAll)

	services := service.NewRegistry()
	require.NoError(t, services.Register(terminal.NewProvider(reg)))

	router := gin.New()
	Register(router, NewHandlers(reg, services, NewHandlerMetrics(metrics), logger).WithBreaker(breaker))

	return &testServer{router: router, sys: sys, reg: reg, metrics: metrics, logs: logs, breaker: breaker}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestCreateShell(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1", "rows": 24, "cols": 80})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info pty.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "tab_1", info.ID)
	assert.Equal(t, uint16(24), info.Rows)
	assert.Equal(t, uint16(80), info.Cols)
	assert.Equal(t, pty.Size{Rows: 24, Cols: 80}, s.sys.Last().Size())
}

func TestCreateShellEmptyBodyGeneratesID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/shells", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.True(t, strings.HasPrefix(body["id"].(string), "tab_"))
	assert.Equal(t, float64(30), body["rows"])
	assert.Equal(t, float64(120), body["cols"])
}

func TestCreateShellValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", "{"},
		{"negative rows", gin.H{"rows": -1}},
		{"huge cols", gin.H{"cols": 1 << 20}},
		{"id with space", gin.H{"id": "tab 1"}},
		{"id with slash", gin.H{"id": "a/b"}},
		{"id with query", gin.H{"id": "a?b"}},
		{"id with fragment", gin.H{"id": "a#b"}},
		{"id with escape", gin.H{"id": "a%2Fb"}},
		{"wrong type", gin.H{"rows": "tall"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/shells", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
	assert.Equal(t, 0, s.reg.Len())
}

func TestCreateShellSpawnFailure(t *testing.T) {
	s := newTestServer(t)
	s.sys.SpawnErr = ptytest.ErrInjected

	w := s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "spawn")

	// Second failure trips the breaker; later creates fail fast.
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})
	require.Equal(t, resilience.StateOpen, s.breaker.State())

	s.sys.SpawnErr = nil
	w = s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], resilience.ErrCircuitOpen.Error())

	health := decode(t, s.do(http.MethodGet, "/health", nil))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, "open", health["spawn_breaker"])
}

func TestIDWithEverySymbolIsReachable(t *testing.T) {
	s := newTestServer(t)
	tabID := "Tab-1.x_y:Z9"

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/shells", gin.H{"id": tabID}).Code)

	w := s.do(http.MethodPost, "/shells/"+tabID+"/write", gin.H{"data": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ok", decode(t, s.do(http.MethodGet, "/shells/"+tabID+"/read", nil))["data"])
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/shells/"+tabID, nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/shells/"+tabID, nil).Code)
	assert.Equal(t, 0, s.reg.Len())
	assert.True(t, s.sys.Last().Closed())
}

func TestWriteAndRead(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"}).Code)

	w := s.do(http.MethodPost, "/shells/tab_1/write", gin.H{"data": "echo hi\r"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(8), decode(t, w)["bytes"])

	var read ReadResponse
	w = s.do(http.MethodGet, "/shells/tab_1/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &read))
	assert.Equal(t, ReadResponse{Data: "echo hi\r", Exited: false, Found: true}, read)

	assert.Equal(t, float64(8), testutil.ToFloat64(s.metrics.PTYBytes.WithLabelValues("in")))
}

func TestWriteBase64(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	// Ctrl-C followed by "ok"
	w := s.do(http.MethodPost, "/shells/tab_1/write", gin.H{"data": "A29r", "encoding": "base64"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, s.do(http.MethodGet, "/shells/tab_1/read", nil))
	assert.Equal(t, "\x03ok", body["data"])
}

func TestWriteValidation(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing data", gin.H{}},
		{"bad base64", gin.H{"data": "!!", "encoding": "base64"}},
		{"unknown encoding", gin.H{"data": "x", "encoding": "rot13"}},
		{"empty body", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/shells/tab_1/write", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestWriteEmptyStringIsAllowed(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	w := s.do(http.MethodPost, "/shells/tab_1/write", gin.H{"data": ""})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadReportsExit(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	s.sys.Last().Process().Exit(0)
	require.Eventually(t, func() bool {
		info, ok := s.reg.Info("tab_1")
		return ok && info.Exited
	}, time.Second, 5*time.Millisecond)

	body := decode(t, s.do(http.MethodGet, "/shells/tab_1/read", nil))
	assert.Equal(t, "", body["data"])
	assert.Equal(t, true, body["exited"])
}

func TestUnknownShellIsNoop(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/shells/ghost/write", gin.H{"data": "x"}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/shells/ghost/resize", gin.H{"rows": 5, "cols": 5}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/shells/ghost", nil).Code)

	body := decode(t, s.do(http.MethodGet, "/shells/ghost/read", nil))
	assert.Equal(t, "", body["data"])
	assert.Equal(t, false, body["exited"])
	assert.Equal(t, false, body["found"])

	w := s.do(http.MethodGet, "/shells/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session not found", decode(t, w)["error"])
}

func TestResizeShell(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	w := s.do(http.MethodPost, "/shells/tab_1/resize", gin.H{"rows": 50, "cols": 200})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pty.Size{Rows: 50, Cols: 200}, s.sys.Last().Size())

	var info pty.Info
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/shells/tab_1", nil).Body.Bytes(), &info))
	assert.Equal(t, uint16(50), info.Rows)
	assert.Equal(t, uint16(200), info.Cols)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/shells/tab_1/resize", gin.H{"rows": 0, "cols": 80}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/shells/tab_1/resize", gin.H{"rows": 24}).Code)
}

func TestCloseAndList(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_b"})
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_a"})

	body := decode(t, s.do(http.MethodGet, "/shells", nil))
	assert.Equal(t, float64(2), body["count"])
	sessions := body["sessions"].([]interface{})
	assert.Equal(t, "tab_a", sessions[0].(map[string]interface{})["id"])

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/shells/tab_a", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/shells/tab_a", nil).Code)

	body = decode(t, s.do(http.MethodGet, "/shells", nil))
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/shells/tab_a", nil).Code)
	assert.True(t, s.sys.Pairs()[1].Closed())
}

func TestRecreateReplacesShell(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})
	first := s.sys.Last()

	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	assert.True(t, first.Closed())
	assert.Equal(t, 1, s.reg.Len())
}

func TestListServices(t *testing.T) {
	s := newTestServer(t)

	body := decode(t, s.do(http.MethodGet, "/services", nil))
	services := body["services"].([]interface{})
	require.Len(t, services, 1)
	assert.Equal(t, "terminal", services[0].(map[string]interface{})["id"])
	assert.NotNil(t, body["stats"])

	body = decode(t, s.do(http.MethodGet, "/services?category=terminal", nil))
	assert.Len(t, body["services"], 1)

	body = decode(t, s.do(http.MethodGet, "/services?intent=open+a+shell", nil))
	assert.Equal(t, "open a shell", body["query"])
	assert.Len(t, body["services"], 1)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/services?category=games", nil).Code)
}

func TestDiscoverServices(t *testing.T) {
	s := newTestServer(t)

	body := decode(t, s.do(http.MethodPost, "/services/discover", gin.H{"message": "resize my terminal"}))
	assert.Len(t, body["services"], 1)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/services/discover", gin.H{}).Code)
}

func TestExecuteService(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/services/execute", gin.H{
		"tool_id": "terminal.create_shell",
		"params":  gin.H{"tab_id": "tab_1", "rows": 10, "cols": 20},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "tab_1", body["data"].(map[string]interface{})["tab_id"])
	assert.Equal(t, pty.Size{Rows: 10, Cols: 20}, s.sys.Last().Size())

	assert.Equal(t, float64(1), testutil.ToFloat64(
		s.metrics.ServiceCalls.WithLabelValues("terminal", "terminal.create_shell", "success")))
}

func TestExecuteServiceErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"missing tool", gin.H{}, http.StatusBadRequest},
		{"tool without service", gin.H{"tool_id": "create_shell"}, http.StatusBadRequest},
		{"unknown service", gin.H{"tool_id": "games.chess"}, http.StatusNotFound},
		{"bad params", gin.H{"tool_id": "terminal.write_to_pty", "params": gin.H{"data": "x"}}, http.StatusBadRequest},
		{"unknown tool", gin.H{"tool_id": "terminal.format_disk"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/services/execute", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	body := decode(t, s.do(http.MethodGet, "/health", nil))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
	assert.Equal(t, "closed", body["spawn_breaker"])
}

func TestMetricsJSON(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/shells", gin.H{"id": "tab_1"})

	body := decode(t, s.do(http.MethodGet, "/metrics/json", nil))
	backend := body["backend"].(map[string]interface{})
	assert.Equal(t, float64(1), backend["sessions_created"])
	assert.Equal(t, float64(1), body["sessions"])
	assert.Equal(t, "closed", body["spawn_breaker"].(map[string]interface{})["state"])
}

func TestStreamLogs(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/logs", gin.H{
		"source": "ui",
		"entries": []gin.H{
			{"id": "1", "level": "error", "message": "websocket dropped", "tab_id": "tab_1"},
			{"id": "2", "level": "info", "message": "tab opened", "context": gin.H{"rows": 24}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["entries_received"])

	dropped := s.logs.FilterMessage("websocket dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, zapcore.ErrorLevel, dropped[0].Level)
	assert.Equal(t, "tab_1", dropped[0].ContextMap()["tab_id"])
	assert.Equal(t, "ui", dropped[0].ContextMap()["source"])

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/logs", gin.H{"entries": []gin.H{}}).Code)
}
