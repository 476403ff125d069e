package metrics

import "sort"

// StatusCount is one row of the status-code distribution. Code 0 groups
// transport-level failures that never produced a response.
type StatusCount struct {
	Code  int
	Count int64
}

// FlattenStatusCounts converts the code->count map into rows sorted by
// descending count, then ascending code for stability.
func FlattenStatusCounts(counts map[int]int64) []StatusCount {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]StatusCount, 0, len(counts))
	for code, count := range counts {
		rows = append(rows, StatusCount{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
