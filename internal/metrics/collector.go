package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector accumulates per-request outcomes for one running test. The
// scheduler is the only writer (results are funneled through its coordinating
// goroutine), but the mutex also makes on-demand snapshots from reporters and
// the dashboard safe.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	sumLatency   time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	samples      []time.Duration
	statusCounts map[int]int64
	errorsByType map[string]int64
	start        time.Time
}

// Stats is an aggregated view over recorded requests. The P50/P90/P99Stream
// fields come from the streaming histogram and serve live progress; Latency
// carries the exact sample-based summary and is populated by Final.
type Stats struct {
	Total          int64   `json:"total"`
	Successes      int64   `json:"successes"`
	Failures       int64   `json:"failures"`
	SuccessRate    float64 `json:"success_rate"`
	RequestsPerSec float64 `json:"requests_per_sec"`

	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Stream   time.Duration `json:"-"`
	P90Stream   time.Duration `json:"-"`
	P99Stream   time.Duration `json:"-"`
	Duration    time.Duration `json:"-"`

	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`

	Latency      *Summary       `json:"latency,omitempty"`
	StatusCounts map[int]int64  `json:"status_counts,omitempty"`
	Errors       map[string]int `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		statusCounts: make(map[int]int64),
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start marks the moment the first batch is about to launch, so achieved-RPS
// math is not skewed by setup time between construction and execution.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// StartTime reports when the run began.
func (c *Collector) StartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start
}

// Record accumulates one settled request. Every outcome contributes exactly
// one latency sample; statusCode 0 marks a transport-level failure.
func (c *Collector) Record(success bool, statusCode int, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	c.samples = append(c.samples, latency)

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	c.statusCounts[statusCode]++

	if success {
		c.successes++
		return
	}
	c.failures++
	if err != nil {
		errorType := fmt.Sprintf("%T", err)
		if len(errorType) > 30 {
			errorType = errorType[len(errorType)-30:]
		}
		c.errorsByType[errorType]++
	}
}

// Snapshot computes the live view. Percentiles come from the streaming
// histogram; the exact sample-based summary is deferred to Final so progress
// ticks stay cheap.
func (c *Collector) Snapshot(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked(elapsed)
}

// Final computes the end-of-run view, including the exact interpolated
// percentile summary over the full latency sample set.
func (c *Collector) Final(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.statsLocked(elapsed)
	if summary, ok := Compute(c.sampleMillisLocked()); ok {
		stats.Latency = &summary
	}
	return stats
}

// SampleMillis returns a copy of all recorded latencies in milliseconds.
func (c *Collector) SampleMillis() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleMillisLocked()
}

func (c *Collector) sampleMillisLocked() []float64 {
	out := make([]float64, len(c.samples))
	for i, d := range c.samples {
		out[i] = float64(d) / float64(time.Millisecond)
	}
	return out
}

func (c *Collector) statsLocked(elapsed time.Duration) Stats {
	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	// Zero totals report 0, never NaN.
	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
		stats.SuccessRate = float64(c.successes) / float64(total) * 100
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Stream = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Stream = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Stream = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.statusCounts) > 0 {
		stats.StatusCounts = make(map[int]int64, len(c.statusCounts))
		for code, count := range c.statusCounts {
			stats.StatusCounts[code] = count
		}
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	return stats
}
