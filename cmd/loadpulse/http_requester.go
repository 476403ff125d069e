package main

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rkried/loadpulse/internal/httpclient"
	"github.com/rkried/loadpulse/internal/runner"
	"github.com/rkried/loadpulse/internal/tracing"
)

const maxLoggedBodyBytes = 1024

// httpExecutor issues one HTTP request per Execute call and classifies the
// outcome. Status codes in [200, 300) count as success; anything else,
// including transport failures, is a failure. A transport failure records
// status code 0.
type httpExecutor struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	tracer    trace.Tracer
	propagate bool
}

func (e *httpExecutor) Execute(ctx context.Context, requestID int64) runner.Result {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	result := runner.Result{ID: requestID, Timestamp: start}

	req, err := e.builder.Build(ctx, requestID)
	if err != nil {
		result.Latency = time.Since(start)
		result.Err = err
		return result
	}

	var span trace.Span
	if e.tracer != nil {
		var spanCtx context.Context
		spanCtx, span = tracing.StartRequestSpan(ctx, e.tracer, req.Method, req.URL.String(), requestID)
		req = req.WithContext(spanCtx)
		if e.propagate {
			tracing.InjectHTTPHeaders(spanCtx, req.Header)
		}
	}

	resp, err := e.client.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Err = err
		if span != nil {
			tracing.EndSpan(span, 0, err)
		}
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		_, _ = io.Copy(io.Discard, resp.Body)
	} else {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		if readErr != nil {
			result.Err = readErr
		} else {
			result.Err = &runner.HTTPError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(snippet)),
			}
		}
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	if span != nil {
		tracing.EndSpan(span, resp.StatusCode, result.Err)
	}
	return result
}
