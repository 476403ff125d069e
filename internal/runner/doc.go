// Package runner schedules load test execution. It issues requests in
// one-second batches sized to the target rate, waits for every request in a
// batch to settle, then sleeps out the remainder of the second before the
// next batch. A batch that overruns its second starts the next batch
// immediately with no compensating burst.
//
// Two modes share the batch loop: constant rate runs a fixed batch size
// until the total request count is reached, ramp-up walks a list of stage
// targets across the configured duration. Observers receive lifecycle
// events synchronously on the coordinating goroutine.
package runner
