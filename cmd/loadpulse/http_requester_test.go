package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/httpclient"
	"github.com/rkried/loadpulse/internal/runner"
	"github.com/rkried/loadpulse/internal/template"
	"github.com/rkried/loadpulse/internal/testserver"
)

func newHTTPExecutor(t *testing.T, cfg *config.Config) *httpExecutor {
	t.Helper()
	builder, err := httpclient.NewRequestBuilder(cfg, template.NewEngine())
	if err != nil {
		t.Fatalf("NewRequestBuilder: %v", err)
	}
	return &httpExecutor{
		client:  httpclient.NewClient(cfg.Timeout),
		builder: builder,
	}
}

func TestExecuteSuccess(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	exec := newHTTPExecutor(t, &config.Config{
		TargetURL: srv.URL(),
		Method:    "GET",
		Timeout:   5 * time.Second,
	})

	res := exec.Execute(context.Background(), 1)
	if !res.Success || res.StatusCode != 200 || res.Err != nil {
		t.Fatalf("result = %+v, want success with status 200", res)
	}
	if res.Latency <= 0 {
		t.Error("latency not measured")
	}
	if res.ID != 1 {
		t.Errorf("ID = %d, want 1", res.ID)
	}
}

func TestExecuteServerErrorYieldsHTTPError(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	exec := newHTTPExecutor(t, &config.Config{
		TargetURL: srv.URL(),
		Method:    "POST",
		Body:      `{"fail":true}`,
		Timeout:   5 * time.Second,
	})

	res := exec.Execute(context.Background(), 1)
	if res.Success {
		t.Fatal("500 response should not be a success")
	}
	if res.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", res.StatusCode)
	}
	var httpErr *runner.HTTPError
	if !errors.As(res.Err, &httpErr) || httpErr.StatusCode != 500 {
		t.Fatalf("err = %v, want *runner.HTTPError with status 500", res.Err)
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	exec := newHTTPExecutor(t, &config.Config{
		TargetURL: "http://127.0.0.1:1",
		Method:    "GET",
		Timeout:   time.Second,
	})

	res := exec.Execute(context.Background(), 1)
	if res.Success {
		t.Fatal("connection failure should not be a success")
	}
	if res.StatusCode != 0 {
		t.Fatalf("status = %d, want 0 for transport failure", res.StatusCode)
	}
	if res.Err == nil {
		t.Fatal("transport failure should carry an error")
	}
}

func TestRetryPolicyRetriesThrottledResponses(t *testing.T) {
	policy := newRetryPolicy(3)
	if policy.MaxAttempts != 4 {
		t.Fatalf("MaxAttempts = %d, want 4", policy.MaxAttempts)
	}

	throttled := runner.Result{Err: &runner.HTTPError{StatusCode: 429}}
	if !policy.ShouldRetry(throttled) {
		t.Error("429 should be retryable")
	}
	serverErr := runner.Result{Err: &runner.HTTPError{StatusCode: 503}}
	if !policy.ShouldRetry(serverErr) {
		t.Error("503 should be retryable")
	}
	clientErr := runner.Result{Err: &runner.HTTPError{StatusCode: 404}}
	if policy.ShouldRetry(clientErr) {
		t.Error("404 should not be retryable")
	}
	cancelled := runner.Result{Err: context.Canceled}
	if policy.ShouldRetry(cancelled) {
		t.Error("cancellation should not be retried")
	}
	success := runner.Result{Success: true}
	if policy.ShouldRetry(success) {
		t.Error("success should never retry")
	}
}

func TestRetryPolicyBackoffIsBoundedAndGrowing(t *testing.T) {
	policy := newRetryPolicy(10)

	prevBase := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		delay := policy.DelayFunc(attempt, runner.Result{})
		base := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
		if base > maxRetryDelay {
			base = maxRetryDelay
		}
		if delay < base || delay > base+base/2 {
			t.Errorf("attempt %d: delay %s outside [%s, %s]", attempt, delay, base, base+base/2)
		}
		if base < prevBase {
			t.Errorf("attempt %d: base backoff shrank", attempt)
		}
		prevBase = base
	}
}
