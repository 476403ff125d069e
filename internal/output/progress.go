package output

import (
	"fmt"
	"io"
	"time"

	"github.com/rkried/loadpulse/internal/config"
	"github.com/rkried/loadpulse/internal/metrics"
	"github.com/rkried/loadpulse/internal/runner"
)

// ConsoleReporter prints lifecycle events as the test runs: a header at
// start, one line per completed batch, one per completed ramp-up stage. It
// receives events on the scheduler's coordinating goroutine, so writes need
// no locking.
type ConsoleReporter struct {
	runner.NopObserver
	w      io.Writer
	silent bool
}

// NewConsoleReporter creates a reporter writing to w. With silent set, only
// errors are printed.
func NewConsoleReporter(w io.Writer, silent bool) *ConsoleReporter {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleReporter{w: w, silent: silent}
}

func (c *ConsoleReporter) OnTestStart(cfg *config.Config) {
	if c.silent {
		return
	}
	if cfg.RampMode() {
		fmt.Fprintf(c.w, "Starting ramp-up test against %s: stages %v over %s\n",
			cfg.ResolvedURL(), cfg.RampUp, cfg.Duration)
		return
	}
	target := cfg.Total
	if target <= 0 {
		target = int(cfg.Duration.Seconds() * float64(cfg.Rate))
	}
	fmt.Fprintf(c.w, "Starting load test against %s: %d requests at %d req/s\n",
		cfg.ResolvedURL(), target, cfg.Rate)
}

func (c *ConsoleReporter) OnProgress(p runner.Progress) {
	if c.silent {
		return
	}
	fmt.Fprintf(c.w, "Batch %d/%d | Requests: %d | Successes: %d | Failures: %d | RPS: %.1f | Avg: %s\n",
		p.Batch, p.TotalBatches, p.Total, p.Successes, p.Failures,
		p.AchievedRPS, p.AvgLatency.Round(time.Millisecond))
}

func (c *ConsoleReporter) OnStageComplete(s runner.Stage) {
	if c.silent {
		return
	}
	fmt.Fprintf(c.w, "Stage %d complete (target %d req/s)\n", s.Index, s.TargetRPS)
}

func (c *ConsoleReporter) OnTestComplete(stats metrics.Stats) {
	if c.silent {
		return
	}
	fmt.Fprintf(c.w, "Test complete: %d requests in %s\n",
		stats.Total, stats.Duration.Round(time.Millisecond))
}

func (c *ConsoleReporter) OnError(err error) {
	fmt.Fprintf(c.w, "Error: %v\n", err)
}

// ErrorLogger records failed request errors as they settle, for --log-errors.
type ErrorLogger struct {
	w io.Writer
}

func NewErrorLogger(w io.Writer) *ErrorLogger {
	if w == nil {
		w = io.Discard
	}
	return &ErrorLogger{w: w}
}

// LogFailure implements runner.FailureLogger.
func (l *ErrorLogger) LogFailure(err error) {
	fmt.Fprintf(l.w, "[%s] request failed: %v\n", time.Now().Format(time.RFC3339), err)
}
