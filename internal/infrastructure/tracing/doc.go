/*
Package tracing records one span per API request and logs it through zap.

Trace context travels in the X-Trace-ID and X-Span-ID headers. A request that
carries them continues the caller's trace; otherwise a new trace id is minted.
Both ids are echoed in the response so a front end can quote them in bug
reports.

# Usage

	tracer := tracing.New("ptyhost", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

Finished spans are queued (1000 deep) and logged by a single collector
goroutine. When the queue is full spans are dropped with a warning instead of
blocking the request.
*/
package tracing
