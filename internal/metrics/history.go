package metrics

import (
	"sync"
	"time"
)

// DataPoint is one timestamped sample of the running aggregates, taken
// between batches. The HTML report embeds these for its charts.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	RPS       float64   `json:"current_rps"`
	P50Ms     float64   `json:"p50_latency_ms"`
	P90Ms     float64   `json:"p90_latency_ms"`
	P99Ms     float64   `json:"p99_latency_ms"`
}

// History accumulates snapshots over the life of a run.
type History struct {
	mu     sync.Mutex
	points []DataPoint
}

func NewHistory() *History {
	return &History{}
}

// Append records one data point from a stats snapshot.
func (h *History) Append(stats Stats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = append(h.points, DataPoint{
		Timestamp: time.Now(),
		RPS:       stats.RequestsPerSec,
		P50Ms:     float64(stats.P50Stream) / float64(time.Millisecond),
		P90Ms:     float64(stats.P90Stream) / float64(time.Millisecond),
		P99Ms:     float64(stats.P99Stream) / float64(time.Millisecond),
	})
}

// Points returns a copy of the recorded data points.
func (h *History) Points() []DataPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DataPoint, len(h.points))
	copy(out, h.points)
	return out
}
