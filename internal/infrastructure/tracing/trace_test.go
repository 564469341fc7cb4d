package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("ptyhost", zap.New(core))
	t.Cleanup(tracer.Close)
	return tracer, logs
}

func TestStartSpanContinuesTrace(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.NotEmpty(t, root.TraceID)
	assert.Empty(t, root.ParentID)

	child, ctx := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(ctx))
	assert.Equal(t, root.TraceID, GetTraceID(ctx))
}

func TestSubmittedSpansAreLogged(t *testing.T) {
	tracer, logs := newObservedTracer(t)

	span, _ := tracer.StartSpan(context.Background(), "create")
	span.SetTag("tab.id", "tab-1")
	span.Finish()
	tracer.Submit(span)

	failed, _ := tracer.StartSpan(context.Background(), "write")
	failed.SetError(errors.New("broken pipe"))
	failed.Finish()
	tracer.Submit(failed)

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 5*time.Millisecond)

	ok := logs.FilterMessage("span completed").All()
	require.Len(t, ok, 1)
	assert.Equal(t, "tab-1", ok[0].ContextMap()["tab.id"])

	bad := logs.FilterMessage("span completed with error").All()
	require.Len(t, bad, 1)
	assert.Equal(t, int64(500), bad[0].ContextMap()["status"])
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	tracer, logs := newObservedTracer(t)
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	tracer.Submit(span)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, logs.Len())
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer(t)

	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/shells/:id", func(c *gin.Context) {
		assert.Equal(t, TraceID("trace-abc"), GetTraceID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/shells/tab-1", nil)
	req.Header.Set(TraceHeader, "trace-abc")
	req.Header.Set(SpanHeader, "span-parent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "trace-abc", w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))
	assert.NotEqual(t, "span-parent", w.Header().Get(SpanHeader))

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET /shells/:id", fields["operation"])
	assert.Equal(t, "span-parent", fields["parent_id"])
	assert.Equal(t, "tab-1", fields["tab.id"])
	assert.Equal(t, "204", fields["http.status"])
}
