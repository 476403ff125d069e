package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/metrics"
)

// Executor issues one timed request and classifies its outcome. It must
// return exactly one Result per call and never panic on request failure.
type Executor interface {
	Execute(ctx context.Context, requestID int64) Result
}

// Fault marks an unexpected failure inside the scheduling loop itself, as
// opposed to an individual request failing.
type Fault struct {
	Err error
}

func (f *Fault) Error() string { return fmt.Sprintf("scheduler fault: %v", f.Err) }
func (f *Fault) Unwrap() error { return f.Err }

// Options configure a Runner.
type Options struct {
	Config    *config.Config
	Executor  Executor
	Collector *metrics.Collector

	// Sleep is the pacing primitive, injectable for tests. Nil means a
	// context-aware time.Timer wait.
	Sleep func(ctx context.Context, d time.Duration)
}

func (o *Options) normalize() {
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.Sleep == nil {
		o.Sleep = func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
	}
}

// Runner drives the batch loops of one load test: constant-rate mode splits
// the total work into one-second batches of the configured rate; ramp-up
// mode runs the same batch loop per stage with the stage's target rate.
//
// Within a batch all requests run concurrently and the loop waits for every
// one to settle before moving on. Results are drained on the coordinating
// goroutine, which is therefore the single writer into the collector and the
// single event emitter.
type Runner struct {
	opt       Options
	observers []Observer
	running   atomic.Bool
	nextID    atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Subscribe registers an observer. Not safe to call once Run has started.
func (r *Runner) Subscribe(obs Observer) {
	if obs != nil {
		r.observers = append(r.observers, obs)
	}
}

// Stop requests cooperative cancellation. The current batch always runs to
// completion; the flag is consulted once per batch iteration only.
func (r *Runner) Stop() {
	r.running.Store(false)
}

// Running reports whether the test loop is still active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run executes the configured test and returns the final aggregated stats.
// Finalization is guaranteed on every exit path: the running flag is
// cleared, final results are computed, and the test-complete event fires
// even when the loop faults.
func (r *Runner) Run(ctx context.Context) (stats metrics.Stats, err error) {
	if r.opt.Executor == nil {
		return metrics.Stats{}, &Fault{Err: fmt.Errorf("executor is not configured")}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.running.Store(true)
	r.opt.Collector.Start()
	r.emitTestStart()

	defer func() {
		if rec := recover(); rec != nil {
			err = &Fault{Err: fmt.Errorf("%v", rec)}
		}
		r.running.Store(false)
		stats = r.opt.Collector.Final(time.Since(r.opt.Collector.StartTime()))
		if err != nil {
			r.emitError(err)
		}
		r.emitTestComplete(stats)
	}()

	if r.opt.Config.RampMode() {
		r.runRampUp(ctx)
	} else {
		r.runConstantRate(ctx)
	}
	return
}

// runConstantRate issues totalCalls requests in one-second batches of the
// configured rate, the final batch truncated to the remainder.
func (r *Runner) runConstantRate(ctx context.Context) {
	cfg := r.opt.Config

	totalCalls := cfg.Total
	if totalCalls <= 0 {
		totalCalls = int(cfg.Duration.Seconds() * float64(cfg.Rate))
	}
	if totalCalls <= 0 {
		return
	}
	totalBatches := (totalCalls + cfg.Rate - 1) / cfg.Rate

	sent := 0
	for batch := 0; batch < totalBatches && r.keepRunning(ctx); batch++ {
		size := cfg.Rate
		if remaining := totalCalls - sent; remaining < size {
			size = remaining
		}

		batchStart := time.Now()
		r.runBatch(ctx, size)
		sent += size

		snapshot := r.snapshot()
		r.emitProgress(Progress{
			Batch:        batch + 1,
			TotalBatches: totalBatches,
			Total:        snapshot.Total,
			Successes:    snapshot.Successes,
			Failures:     snapshot.Failures,
			AchievedRPS:  snapshot.RequestsPerSec,
			AvgLatency:   snapshot.MeanLatency,
		})

		if batch+1 < totalBatches {
			r.pace(ctx, time.Since(batchStart))
		}
	}
}

// runRampUp divides the configured duration evenly across the stages and
// runs the one-second batch loop per stage at the stage's target rate,
// clamped by the optional cap. Stage targets are absolute, not cumulative.
func (r *Runner) runRampUp(ctx context.Context) {
	cfg := r.opt.Config
	stages := len(cfg.RampUp)
	stageDuration := cfg.Duration / time.Duration(stages)

	for i, target := range cfg.RampUp {
		if !r.keepRunning(ctx) {
			return
		}

		size := target
		if cfg.MaxRate > 0 && cfg.MaxRate < size {
			size = cfg.MaxRate
		}

		stageStart := time.Now()
		for time.Since(stageStart) < stageDuration {
			if !r.keepRunning(ctx) {
				return
			}
			batchStart := time.Now()
			r.runBatch(ctx, size)
			r.pace(ctx, time.Since(batchStart))
		}

		r.emitStageComplete(Stage{Index: i + 1, TargetRPS: target})
	}
}

// runBatch fans out one batch concurrently and blocks at the join barrier
// until every request has settled; failures satisfy the barrier the same as
// successes. Draining happens here, on the coordinating goroutine, so
// counter updates and request-complete events are serialized.
func (r *Runner) runBatch(ctx context.Context, size int) {
	if size <= 0 {
		return
	}

	results := make(chan Result, size)
	for i := 0; i < size; i++ {
		id := r.nextID.Add(1)
		go func(requestID int64) {
			results <- r.opt.Executor.Execute(ctx, requestID)
		}(id)
	}

	for i := 0; i < size; i++ {
		res := <-results
		r.opt.Collector.Record(res.Success, res.StatusCode, res.Latency, res.Err)
		r.emitRequestComplete(res)
	}
}

// pace is the self-correcting barrier: sleep out the rest of the second, or
// nothing at all when the batch overran. An overrun never triggers a
// compensating burst, so throughput degrades gracefully under latency
// pressure instead of queuing.
func (r *Runner) pace(ctx context.Context, batchDuration time.Duration) {
	if wait := time.Second - batchDuration; wait > 0 {
		r.opt.Sleep(ctx, wait)
	}
}

func (r *Runner) keepRunning(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.running.Store(false)
	}
	return r.running.Load()
}

func (r *Runner) snapshot() metrics.Stats {
	return r.opt.Collector.Snapshot(time.Since(r.opt.Collector.StartTime()))
}
