package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyhost/internal/pty/ptytest"
)

func newTestServer(t *testing.T) (*Server, *ptytest.System) {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.Terminal.CloseGrace = config.Duration{Duration: 100 * time.Millisecond}

	sys := ptytest.New()
	s := New(cfg, logging.Nop(), sys)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, sys
}

func TestServerRoutes(t *testing.T) {
	s, sys := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/shells", "application/json", strings.NewReader(`{"id":"tab_1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, "/bin/sh", sys.Last().Command().Path)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ptyhost_sessions_active 1")

	resp, err = http.Get(ts.URL + "/services")
	require.NoError(t, err)
	var services struct {
		Services []struct {
			ID string `json:"id"`
		} `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&services))
	resp.Body.Close()
	require.Len(t, services.Services, 2)
	assert.Equal(t, "system", services.Services[0].ID)
	assert.Equal(t, "terminal", services.Services[1].ID)
}

func TestServerCORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/shells", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeAndShutdownClosesShells(t *testing.T) {
	s, sys := newTestServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- s.Serve(l) }()

	url := "http://" + l.Addr().String()
	resp, err := http.Post(url+"/shells", "application/json", strings.NewReader(`{"id":"tab_1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 1, s.Sessions().Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	assert.Equal(t, 0, s.Sessions().Len())
	assert.True(t, sys.Last().Closed())
}

func TestAddr(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, "0.0.0.0:8000", s.Addr())
}
