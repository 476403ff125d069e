package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPError represents an HTTP response outside the success range.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

// RetryPolicy configures retry behavior for an Executor.
type RetryPolicy struct {
	MaxAttempts int                                         // total attempts including the initial try
	Delay       time.Duration                               // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(Result) bool                           // predicate; nil means retry transport errors, 5xx and 429
	DelayFunc   func(attempt int, res Result) time.Duration // dynamic backoff; attempt is 1-based
}

// WithRetry wraps an Executor with retry capability. The wrapped executor
// still yields exactly one Result per request id; a retried request reports
// the total wall-clock time across all attempts as its latency.
func WithRetry(inner Executor, policy RetryPolicy) Executor {
	if policy.MaxAttempts <= 1 {
		return inner
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = defaultShouldRetry
	}
	return &retryExecutor{inner: inner, policy: policy}
}

// defaultShouldRetry retries transport-level failures and responses that
// suggest transient server pressure.
func defaultShouldRetry(res Result) bool {
	if res.Success {
		return false
	}
	if res.StatusCode == 0 {
		return true
	}
	return res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests
}

type retryExecutor struct {
	inner  Executor
	policy RetryPolicy
}

func (r *retryExecutor) Execute(ctx context.Context, requestID int64) Result {
	start := time.Now()
	var res Result
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		res = r.inner.Execute(ctx, requestID)
		if res.Success || ctx.Err() != nil {
			break
		}
		if attempt == r.policy.MaxAttempts || !r.policy.ShouldRetry(res) {
			break
		}

		var delay time.Duration
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, res)
		} else {
			delay = r.policy.Delay
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				res.Latency = time.Since(start)
				return res
			}
			timer.Stop()
		}
	}
	res.Latency = time.Since(start)
	return res
}

// WithLogging wraps an Executor so failed requests are reported to the
// logger as they settle.
func WithLogging(inner Executor, logger FailureLogger) Executor {
	if logger == nil {
		return inner
	}
	return &loggingExecutor{inner: inner, logger: logger}
}

type loggingExecutor struct {
	inner  Executor
	logger FailureLogger
}

func (l *loggingExecutor) Execute(ctx context.Context, requestID int64) Result {
	res := l.inner.Execute(ctx, requestID)
	if !res.Success {
		err := res.Err
		if err == nil {
			err = &HTTPError{StatusCode: res.StatusCode}
		}
		l.logger.LogFailure(err)
	}
	return res
}
