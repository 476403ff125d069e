package threshold

import (
	"strings"
	"testing"
	"time"

	"github.com/rkried/loadpulse/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Threshold
	}{
		{
			input: "latency:p95 < 500",
			want:  Threshold{Metric: "latency", Aggregate: "p95", Operator: "<", Value: 500},
		},
		{
			input: "latency:avg<=200",
			want:  Threshold{Metric: "latency", Aggregate: "avg", Operator: "<=", Value: 200},
		},
		{
			input: "failed:rate < 0.01",
			want:  Threshold{Metric: "failed", Aggregate: "rate", Operator: "<", Value: 0.01},
		},
		{
			input: "requests:rate > 100",
			want:  Threshold{Metric: "requests", Aggregate: "rate", Operator: ">", Value: 100},
		},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if got.Metric != tt.want.Metric || got.Aggregate != tt.want.Aggregate ||
			got.Operator != tt.want.Operator || got.Value != tt.want.Value {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
		if got.Raw != strings.TrimSpace(tt.input) {
			t.Errorf("Parse(%q).Raw = %q", tt.input, got.Raw)
		}
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, input := range []string{
		"",
		"latency:p95",
		"latency:p95 < abc",
		"memory:p95 < 500",
		"latency:median < 500",
		"latency:p95 ~ 500",
	} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestParseMultipleCollectsAllErrors(t *testing.T) {
	_, err := ParseMultiple([]string{"latency:p95 < 500", "bogus", "also bogus"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") || !strings.Contains(err.Error(), "threshold[2]") {
		t.Errorf("error should name every bad threshold: %v", err)
	}
}

func sampleStats() metrics.Stats {
	return metrics.Stats{
		Total:          1000,
		Successes:      990,
		Failures:       10,
		RequestsPerSec: 120,
		P50Stream:      20 * time.Millisecond,
		P90Stream:      45 * time.Millisecond,
		P99Stream:      95 * time.Millisecond,
		MeanLatencyMs:  25,
		MinLatencyMs:   5,
		MaxLatencyMs:   120,
		Latency:        &metrics.Summary{Min: 5, Max: 120, Avg: 25.5, P95: 60, P99: 95},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		threshold string
		pass      bool
		actual    float64
	}{
		{"latency:p95 < 500", true, 60},
		{"latency:p95 < 50", false, 60},
		{"latency:p99 <= 95", true, 95},
		{"latency:avg < 30", true, 25.5},
		{"latency:max < 100", false, 120},
		{"latency:p50 < 25", true, 20},
		{"failed:rate < 0.05", true, 0.01},
		{"failed:rate < 0.005", false, 0.01},
		{"failed:count == 10", true, 10},
		{"requests:rate > 100", true, 120},
		{"requests:count >= 1000", true, 1000},
	}

	thresholds := make([]Threshold, 0, len(tests))
	for _, tt := range tests {
		parsed, err := Parse(tt.threshold)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.threshold, err)
		}
		thresholds = append(thresholds, parsed)
	}

	results := NewEvaluator(thresholds).Evaluate(sampleStats())
	if len(results) != len(tests) {
		t.Fatalf("got %d results, want %d", len(results), len(tests))
	}
	for i, tt := range tests {
		if results[i].Pass != tt.pass {
			t.Errorf("%q: pass = %v, want %v (%s)", tt.threshold, results[i].Pass, tt.pass, results[i].Message)
		}
		if results[i].Actual != tt.actual {
			t.Errorf("%q: actual = %v, want %v", tt.threshold, results[i].Actual, tt.actual)
		}
	}
}

func TestEvaluateWithoutSummaryFallsBackToStream(t *testing.T) {
	stats := sampleStats()
	stats.Latency = nil

	parsed, err := Parse("latency:p99 < 100")
	if err != nil {
		t.Fatal(err)
	}
	results := NewEvaluator([]Threshold{parsed}).Evaluate(stats)
	if !results[0].Pass || results[0].Actual != 95 {
		t.Errorf("result = %+v, want pass with actual 95", results[0])
	}
}

func TestAllPassed(t *testing.T) {
	if !AllPassed([]Result{{Pass: true}, {Pass: true}}) {
		t.Error("AllPassed should be true when every result passed")
	}
	if AllPassed([]Result{{Pass: true}, {Pass: false}}) {
		t.Error("AllPassed should be false when any result failed")
	}
	if !AllPassed(nil) {
		t.Error("AllPassed over no results should be true")
	}
}

func TestFailedRateZeroTotal(t *testing.T) {
	parsed, err := Parse("failed:rate < 0.01")
	if err != nil {
		t.Fatal(err)
	}
	results := NewEvaluator([]Threshold{parsed}).Evaluate(metrics.Stats{})
	if !results[0].Pass || results[0].Actual != 0 {
		t.Errorf("zero-request run should evaluate failure rate 0: %+v", results[0])
	}
}
