package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestCollectorRecordsBasicStats(t *testing.T) {
	c := NewCollector()
	c.Record(true, 200, 10*time.Millisecond, nil)
	c.Record(true, 201, 20*time.Millisecond, nil)
	c.Record(false, 500, 30*time.Millisecond, nil)
	c.Record(false, 0, 5*time.Millisecond, errors.New("dial refused"))

	stats := c.Snapshot(2 * time.Second)

	if stats.Total != 4 {
		t.Fatalf("expected total 4, got %d", stats.Total)
	}
	if stats.Successes != 2 || stats.Failures != 2 {
		t.Fatalf("unexpected success/failure split: %d/%d", stats.Successes, stats.Failures)
	}
	if stats.SuccessRate != 50 {
		t.Fatalf("expected success rate 50, got %v", stats.SuccessRate)
	}
	if stats.MinLatency != 5*time.Millisecond || stats.MaxLatency != 30*time.Millisecond {
		t.Fatalf("unexpected min/max: %s/%s", stats.MinLatency, stats.MaxLatency)
	}
	if stats.RequestsPerSec != 2 {
		t.Fatalf("expected 2 rps over 2s, got %v", stats.RequestsPerSec)
	}
	if stats.StatusCounts[0] != 1 || stats.StatusCounts[500] != 1 {
		t.Fatalf("unexpected status counts: %v", stats.StatusCounts)
	}
}

func TestCollectorZeroRequestsReportsZeroNotNaN(t *testing.T) {
	c := NewCollector()
	stats := c.Final(0)

	if stats.Total != 0 {
		t.Fatalf("expected no requests, got %d", stats.Total)
	}
	if stats.MeanLatencyMs != 0 {
		t.Fatalf("expected mean 0, got %v", stats.MeanLatencyMs)
	}
	if stats.SuccessRate != 0 {
		t.Fatalf("expected success rate 0, got %v", stats.SuccessRate)
	}
	if stats.Latency != nil {
		t.Fatalf("expected no latency summary, got %+v", stats.Latency)
	}
}

func TestCollectorSampleSequenceLengthMatchesTotal(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 25; i++ {
		c.Record(i%5 != 0, 200, time.Duration(i+1)*time.Millisecond, nil)
	}

	samples := c.SampleMillis()
	if len(samples) != 25 {
		t.Fatalf("expected 25 samples, got %d", len(samples))
	}
	stats := c.Snapshot(time.Second)
	if stats.Total != int64(len(samples)) {
		t.Fatalf("sample count %d diverged from total %d", len(samples), stats.Total)
	}
}

func TestCollectorFinalIncludesExactSummary(t *testing.T) {
	c := NewCollector()
	for _, ms := range []int{1, 2, 3, 4, 5, 6} {
		c.Record(true, 200, time.Duration(ms)*time.Millisecond, nil)
	}

	stats := c.Final(time.Second)
	if stats.Latency == nil {
		t.Fatal("expected latency summary")
	}
	if stats.Latency.P95 != 5.75 || stats.Latency.P99 != 5.95 {
		t.Fatalf("unexpected percentiles: %+v", stats.Latency)
	}
}

func TestCollectorErrorBreakdown(t *testing.T) {
	c := NewCollector()
	c.Record(false, 0, time.Millisecond, errors.New("boom"))
	c.Record(false, 0, time.Millisecond, errors.New("boom again"))

	stats := c.Snapshot(time.Second)
	total := 0
	for _, n := range stats.Errors {
		total += n
	}
	if total != 2 {
		t.Fatalf("expected 2 bucketed errors, got %v", stats.Errors)
	}
}

func TestFlattenStatusCountsSorted(t *testing.T) {
	rows := FlattenStatusCounts(map[int]int64{200: 10, 500: 3, 0: 3})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Code != 200 {
		t.Fatalf("expected 200 first, got %d", rows[0].Code)
	}
	// Equal counts break ties by ascending code.
	if rows[1].Code != 0 || rows[2].Code != 500 {
		t.Fatalf("unexpected tie order: %+v", rows)
	}
}

func TestFriendlyErrorName(t *testing.T) {
	cases := map[string]string{
		"*url.Error":                     "Request URL error",
		"*context.deadlineExceededError": "Request timeout",
		"runner.HTTPError":               "HTTP error response",
		"":                               "Unknown error",
	}
	for in, want := range cases {
		if got := FriendlyErrorName(in); got != want {
			t.Fatalf("FriendlyErrorName(%q) = %q, want %q", in, got, want)
		}
	}
}
