package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/dashboard"
	"github.com/rkried/loadpulse/internal/httpclient"
	"github.com/rkried/loadpulse/internal/metrics"
	"github.com/rkried/loadpulse/internal/output"
	"github.com/rkried/loadpulse/internal/runner"
	"github.com/rkried/loadpulse/internal/template"
	"github.com/rkried/loadpulse/internal/threshold"
	"github.com/rkried/loadpulse/internal/tracing"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// historyRecorder samples the collector between batches so the HTML report
// can chart the run.
type historyRecorder struct {
	runner.NopObserver
	collector *metrics.Collector
	history   *metrics.History
}

func (h *historyRecorder) OnProgress(runner.Progress) { h.sample() }

func (h *historyRecorder) OnStageComplete(runner.Stage) { h.sample() }

func (h *historyRecorder) sample() {
	h.history.Append(h.collector.Snapshot(time.Since(h.collector.StartTime())))
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	engine := template.NewEngine()
	builder, err := httpclient.NewRequestBuilder(cfg, engine)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	runID := ulid.Make().String()
	collector := metrics.NewCollector()
	history := metrics.NewHistory()

	executor := newExecutor(cfg, builder, tracer)

	r := runner.New(runner.Options{
		Config:    cfg,
		Executor:  executor,
		Collector: collector,
	})
	r.Subscribe(&historyRecorder{collector: collector, history: history})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, cfg, func() {
			r.Stop()
		})
		if err != nil {
			return err
		}
		dash.Start()
	} else {
		r.Subscribe(output.NewConsoleReporter(os.Stdout, cfg.Silent || cfg.JSONOutput))
	}

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	stats, runErr := r.Run(ctx)

	if dash != nil {
		dash.Stop()
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, runID, stats); err != nil {
			return err
		}
	} else if !cfg.Silent {
		output.PrintReport(os.Stdout, runID, stats)
	}

	var results []threshold.Result
	if len(thresholds) > 0 {
		results = threshold.NewEvaluator(thresholds).Evaluate(stats)
		if !cfg.JSONOutput && !cfg.Silent {
			fmt.Fprintln(os.Stdout, "\nThresholds:")
			for _, res := range results {
				fmt.Fprintf(os.Stdout, "  %s\n", res.Message)
			}
		}
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg, runID, stats, history.Points(), results); err != nil {
			return err
		}
		if !cfg.JSONOutput && !cfg.Silent {
			fmt.Fprintf(os.Stdout, "\nHTML report written to %s\n", cfg.HTMLOutput)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !threshold.AllPassed(results) {
		return fmt.Errorf("thresholds failed")
	}
	return nil
}

// newExecutor builds the executor chain: the HTTP requester at the core,
// optionally wrapped with failure logging and retries.
func newExecutor(cfg *config.Config, builder *httpclient.RequestBuilder, tracer *tracing.Provider) runner.Executor {
	base := &httpExecutor{
		client:    httpclient.NewClient(cfg.Timeout),
		builder:   builder,
		propagate: tracer.ShouldPropagate(),
	}
	if cfg.Tracing.Enabled() || tracer.ShouldPropagate() {
		base.tracer = tracer.Tracer()
	}

	var executor runner.Executor = base
	if cfg.LogErrors {
		executor = runner.WithLogging(executor, output.NewErrorLogger(os.Stderr))
	}
	if cfg.Retries > 0 {
		executor = runner.WithRetry(executor, newRetryPolicy(cfg.Retries))
	}
	return executor
}

func writeHTMLReport(cfg *config.Config, runID string, stats metrics.Stats, history []metrics.DataPoint, results []threshold.Result) error {
	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return fmt.Errorf("create HTML report: %w", err)
	}
	metadata := output.ReportMetadata{
		TargetURL: cfg.ResolvedURL(),
		Method:    cfg.Method,
	}
	if err := output.GenerateHTMLReport(f, runID, stats, history, results, metadata); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newRetryPolicy(retries int) runner.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return runner.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(res runner.Result) bool {
			if res.Success {
				return false
			}
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				return false
			}

			var httpErr *runner.HTTPError
			if errors.As(res.Err, &httpErr) {
				if httpErr.StatusCode == http.StatusTooManyRequests {
					return true
				}
				return httpErr.StatusCode >= 500
			}

			return true
		},
		DelayFunc: func(attempt int, res runner.Result) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
