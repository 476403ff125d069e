// Package metrics aggregates per-request outcomes during a load test.
//
// The [Collector] keeps running counters, the full latency sample sequence,
// and an HdrHistogram for cheap streaming percentiles used by live progress
// output:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.Record(true, 200, 12*time.Millisecond, nil)
//	stats := collector.Final(elapsed)
//
// Final statistics come from [Compute], which sorts the complete sample set
// and derives min/max/avg plus linearly interpolated p95/p99. [Compute] is a
// pure function: it never modifies its input and its result does not depend
// on sample order.
package metrics
