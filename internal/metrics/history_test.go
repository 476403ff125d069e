package metrics

import (
	"testing"
	"time"
)

func TestHistoryAppendAndPoints(t *testing.T) {
	h := NewHistory()
	h.Append(Stats{RequestsPerSec: 10, P50Stream: 20 * time.Millisecond, P99Stream: 80 * time.Millisecond})
	h.Append(Stats{RequestsPerSec: 12})

	points := h.Points()
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].RPS != 10 || points[0].P50Ms != 20 || points[0].P99Ms != 80 {
		t.Errorf("first point = %+v", points[0])
	}
	if points[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	// Points hands out a copy.
	points[1].RPS = 999
	if h.Points()[1].RPS != 12 {
		t.Error("mutating the returned slice leaked into the history")
	}
}
