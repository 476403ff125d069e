package output

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rkried/loadpulse/internal/metrics"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, runID string, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if runID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", runID)
	}
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Success Rate:      %.2f%%\n", stats.SuccessRate)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)

	if stats.Latency != nil {
		fmt.Fprintln(w, "\nLatency (ms):")
		fmt.Fprintf(w, "  Min:             %.2f\n", stats.Latency.Min)
		fmt.Fprintf(w, "  Max:             %.2f\n", stats.Latency.Max)
		fmt.Fprintf(w, "  Avg:             %.2f\n", stats.Latency.Avg)
		fmt.Fprintf(w, "  P95:             %.2f\n", stats.Latency.P95)
		fmt.Fprintf(w, "  P99:             %.2f\n", stats.Latency.P99)
	}

	if len(stats.StatusCounts) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		writeStatusCounts(w, stats.StatusCounts, "  ")
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeErrorBreakdown(w, stats.Errors, "  ")
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, runID string, stats metrics.Stats) error {
	doc := struct {
		RunID string `json:"run_id,omitempty"`
		metrics.Stats
	}{RunID: runID, Stats: stats}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeStatusCounts(w io.Writer, counts map[int]int64, indent string) {
	for _, row := range metrics.FlattenStatusCounts(counts) {
		label := "no response"
		if row.Code > 0 {
			label = http.StatusText(row.Code)
			if label == "" {
				label = "unknown"
			}
		}
		fmt.Fprintf(w, "%s%d (%s): %d\n", indent, row.Code, label, row.Count)
	}
}

func writeErrorBreakdown(w io.Writer, errs map[string]int, indent string) {
	type row struct {
		name  string
		count int
	}
	rows := make([]row, 0, len(errs))
	for name, count := range errs {
		rows = append(rows, row{name: metrics.FriendlyErrorName(name), count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count == rows[j].count {
			return rows[i].name < rows[j].name
		}
		return rows[i].count > rows[j].count
	})
	for _, r := range rows {
		fmt.Fprintf(w, "%s%s: %d\n", indent, r.name, r.count)
	}
}
