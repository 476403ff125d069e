package metrics

import (
	"math"
	"sort"
)

// Summary holds latency statistics over a complete sample set, in
// milliseconds. Values are independent of sample order.
type Summary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Compute derives min/max/avg/p95/p99 from a sample set. The second return
// value is false when samples is empty, in which case the Summary is zero and
// should be treated as absent.
//
// Percentiles use linear interpolation between the two adjacent ranked
// samples, so small sample sets produce the conventional interpolated values
// rather than a raw rank lookup.
func Compute(samples []float64) (Summary, bool) {
	if len(samples) == 0 {
		return Summary{}, false
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Summary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: round2(sum / float64(len(sorted))),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}, true
}

// percentile expects sorted ascending input.
func percentile(sorted []float64, p float64) float64 {
	index := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	interpolated := sorted[lower] + (sorted[upper]-sorted[lower])*(index-float64(lower))
	return round2(interpolated)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
