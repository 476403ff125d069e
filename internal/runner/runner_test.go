package runner

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/metrics"
)

type fakeExecutor struct {
	calls atomic.Int64
	fn    func(requestID int64) Result
}

func (f *fakeExecutor) Execute(_ context.Context, requestID int64) Result {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(requestID)
	}
	return Result{
		ID:         requestID,
		Success:    true,
		StatusCode: http.StatusOK,
		Latency:    time.Millisecond,
		Timestamp:  time.Now(),
	}
}

// recorder captures events in dispatch order. Dispatch is serialized on the
// coordinating goroutine, so no locking is needed.
type recorder struct {
	NopObserver
	progress  []Progress
	stages    []Stage
	requests  []Result
	completed []metrics.Stats
	errs      []error
	started   int
}

func (r *recorder) OnTestStart(*config.Config)         { r.started++ }
func (r *recorder) OnProgress(p Progress)              { r.progress = append(r.progress, p) }
func (r *recorder) OnRequestComplete(res Result)       { r.requests = append(r.requests, res) }
func (r *recorder) OnStageComplete(s Stage)            { r.stages = append(r.stages, s) }
func (r *recorder) OnTestComplete(stats metrics.Stats) { r.completed = append(r.completed, stats) }
func (r *recorder) OnError(err error)                  { r.errs = append(r.errs, err) }

func noSleep(context.Context, time.Duration) {}

func newRunner(cfg *config.Config, exec Executor) (*Runner, *recorder) {
	r := New(Options{Config: cfg, Executor: exec, Sleep: noSleep})
	rec := &recorder{}
	r.Subscribe(rec)
	return r, rec
}

func TestConstantRateSplitsFinalBatch(t *testing.T) {
	exec := &fakeExecutor{}
	r, rec := newRunner(&config.Config{Rate: 5, Total: 7}, exec)

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := exec.calls.Load(); got != 7 {
		t.Fatalf("executed %d requests, want 7", got)
	}
	if stats.Total != 7 || stats.Successes != 7 {
		t.Fatalf("stats total=%d successes=%d, want 7/7", stats.Total, stats.Successes)
	}

	if len(rec.progress) != 2 {
		t.Fatalf("got %d progress events, want 2", len(rec.progress))
	}
	first, second := rec.progress[0], rec.progress[1]
	if first.Batch != 1 || first.TotalBatches != 2 || first.Total != 5 {
		t.Errorf("first batch = %+v, want batch 1/2 with 5 requests", first)
	}
	if second.Batch != 2 || second.TotalBatches != 2 || second.Total != 7 {
		t.Errorf("second batch = %+v, want batch 2/2 reaching 7 requests", second)
	}
}

func TestConstantRateDerivesTotalFromDuration(t *testing.T) {
	exec := &fakeExecutor{}
	r, rec := newRunner(&config.Config{Rate: 2, Duration: 3 * time.Second}, exec)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := exec.calls.Load(); got != 6 {
		t.Fatalf("executed %d requests, want 6", got)
	}
	if len(rec.progress) != 3 {
		t.Fatalf("got %d progress events, want 3", len(rec.progress))
	}
}

func TestConstantRateNoWorkFinalizesCleanly(t *testing.T) {
	exec := &fakeExecutor{}
	r, rec := newRunner(&config.Config{Rate: 5}, exec)

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exec.calls.Load() != 0 {
		t.Fatalf("executed %d requests, want 0", exec.calls.Load())
	}
	if stats.Total != 0 || stats.SuccessRate != 0 || stats.MeanLatency != 0 {
		t.Fatalf("zero-request stats not zeroed: %+v", stats)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("got %d test-complete events, want 1", len(rec.completed))
	}
	if r.Running() {
		t.Fatal("runner still reports running after completion")
	}
}

func TestRampUpEmitsOneEventPerStage(t *testing.T) {
	exec := &fakeExecutor{}
	cfg := &config.Config{
		RampUp:   []int{10, 50},
		Duration: 40 * time.Millisecond,
		MaxRate:  5,
	}
	r, rec := newRunner(cfg, exec)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rec.stages) != 2 {
		t.Fatalf("got %d stage events, want 2", len(rec.stages))
	}
	if rec.stages[0].Index != 1 || rec.stages[0].TargetRPS != 10 {
		t.Errorf("first stage = %+v, want index 1 target 10", rec.stages[0])
	}
	if rec.stages[1].Index != 2 || rec.stages[1].TargetRPS != 50 {
		t.Errorf("second stage = %+v, want index 2 target 50", rec.stages[1])
	}

	// Every batch is capped at MaxRate, so the call count is a multiple of 5.
	if got := exec.calls.Load(); got == 0 || got%5 != 0 {
		t.Errorf("executed %d requests, want a positive multiple of 5", got)
	}
	if len(rec.progress) != 0 {
		t.Errorf("ramp-up emitted %d progress events, want none", len(rec.progress))
	}
}

func TestRampUpCancelledStageEmitsNoEvent(t *testing.T) {
	cfg := &config.Config{
		RampUp:   []int{10, 50},
		Duration: 10 * time.Second,
		MaxRate:  2,
	}
	exec := &fakeExecutor{}
	r, rec := newRunner(cfg, exec)

	// Stop after the first batch settles, mid first stage.
	exec.fn = func(requestID int64) Result {
		r.Stop()
		return Result{ID: requestID, Success: true, StatusCode: 200, Latency: time.Millisecond}
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.stages) != 0 {
		t.Fatalf("interrupted stage emitted %d stage events, want 0", len(rec.stages))
	}
	if got := exec.calls.Load(); got != 2 {
		t.Fatalf("executed %d requests, want the 2 already in flight", got)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("got %d test-complete events, want 1", len(rec.completed))
	}
}

func TestStopBetweenBatchesFinishesCurrentBatch(t *testing.T) {
	exec := &fakeExecutor{}
	r, rec := newRunner(&config.Config{Rate: 10, Total: 100}, exec)
	r.Subscribe(stopOnProgress{r})

	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := exec.calls.Load(); got != 10 {
		t.Fatalf("executed %d requests, want exactly the first batch of 10", got)
	}
	if stats.Total != 10 {
		t.Fatalf("final stats report %d requests, want 10", stats.Total)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("got %d test-complete events, want 1", len(rec.completed))
	}
}

type stopOnProgress struct{ r *Runner }

func (s stopOnProgress) OnTestStart(*config.Config)   {}
func (s stopOnProgress) OnProgress(Progress)          { s.r.Stop() }
func (s stopOnProgress) OnRequestComplete(Result)     {}
func (s stopOnProgress) OnStageComplete(Stage)        {}
func (s stopOnProgress) OnTestComplete(metrics.Stats) {}
func (s stopOnProgress) OnError(error)                {}

func TestContextCancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &fakeExecutor{}
	exec.fn = func(requestID int64) Result {
		cancel()
		return Result{ID: requestID, Success: true, StatusCode: 200, Latency: time.Millisecond}
	}
	r, rec := newRunner(&config.Config{Rate: 3, Total: 30}, exec)

	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := exec.calls.Load(); got != 3 {
		t.Fatalf("executed %d requests, want the 3 from the first batch", got)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("got %d test-complete events, want 1", len(rec.completed))
	}
}

func TestFaultStillFinalizes(t *testing.T) {
	exec := &fakeExecutor{}
	r, rec := newRunner(&config.Config{Rate: 2, Total: 4}, exec)
	r.Subscribe(panicObserver{})

	_, err := r.Run(context.Background())
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("Run error = %v, want a *Fault", err)
	}
	if len(rec.errs) != 1 {
		t.Fatalf("got %d error events, want 1", len(rec.errs))
	}
	if len(rec.completed) != 1 {
		t.Fatalf("got %d test-complete events after fault, want 1", len(rec.completed))
	}
	if r.Running() {
		t.Fatal("runner still reports running after fault")
	}
}

type panicObserver struct{ NopObserver }

func (panicObserver) OnProgress(Progress) { panic("observer exploded") }

func TestRequestIDsAreUnique(t *testing.T) {
	exec := &fakeExecutor{}
	r, rec := newRunner(&config.Config{Rate: 4, Total: 12}, exec)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	seen := make(map[int64]bool, len(rec.requests))
	for _, res := range rec.requests {
		if seen[res.ID] {
			t.Fatalf("request id %d settled twice", res.ID)
		}
		seen[res.ID] = true
	}
	if len(seen) != 12 {
		t.Fatalf("saw %d distinct request ids, want 12", len(seen))
	}
}

func TestMissingExecutorFails(t *testing.T) {
	r := New(Options{Config: &config.Config{Rate: 1, Total: 1}, Sleep: noSleep})
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("Run without an executor should fail")
	}
}

func TestRetryRecoversTransientFailures(t *testing.T) {
	var attempts atomic.Int64
	inner := &fakeExecutor{fn: func(requestID int64) Result {
		if attempts.Add(1) < 3 {
			return Result{ID: requestID, StatusCode: 503, Err: &HTTPError{StatusCode: 503}}
		}
		return Result{ID: requestID, Success: true, StatusCode: 200, Latency: time.Millisecond}
	}}

	exec := WithRetry(inner, RetryPolicy{MaxAttempts: 3})
	res := exec.Execute(context.Background(), 1)
	if !res.Success {
		t.Fatalf("result = %+v, want success after retries", res)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("inner executor called %d times, want 3", got)
	}
}

func TestRetrySkipsClientErrors(t *testing.T) {
	inner := &fakeExecutor{fn: func(requestID int64) Result {
		return Result{ID: requestID, StatusCode: 404, Err: &HTTPError{StatusCode: 404}}
	}}

	exec := WithRetry(inner, RetryPolicy{MaxAttempts: 5})
	res := exec.Execute(context.Background(), 1)
	if res.Success {
		t.Fatal("404 should not become a success")
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("inner executor called %d times, want 1 (4xx is not retryable)", got)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &fakeExecutor{fn: func(requestID int64) Result {
		cancel()
		return Result{ID: requestID, StatusCode: 0, Err: errors.New("connection refused")}
	}}

	exec := WithRetry(inner, RetryPolicy{MaxAttempts: 4, Delay: time.Hour})
	start := time.Now()
	res := exec.Execute(ctx, 1)
	if res.Success {
		t.Fatal("cancelled request should not succeed")
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("inner executor called %d times, want 1", inner.calls.Load())
	}
	if time.Since(start) > time.Second {
		t.Fatal("retry waited out the backoff despite cancellation")
	}
}

func TestRetrySingleAttemptIsPassthrough(t *testing.T) {
	inner := &fakeExecutor{}
	if got := WithRetry(inner, RetryPolicy{MaxAttempts: 1}); got != inner {
		t.Fatal("MaxAttempts 1 should return the inner executor unchanged")
	}
}
