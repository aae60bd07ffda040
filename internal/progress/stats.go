package progress

import (
	"sort"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// WorkerStats holds the time-tracking totals for one worker name.
type WorkerStats struct {
	WorkerName           string  `json:"worker_name"`
	TotalTime            float64 `json:"total_time"`
	TotalQuantity        int64   `json:"total_quantity"`
	TotalWeight          float64 `json:"total_weight"`
	EntryCount           int     `json:"entry_count"`
	AverageTimePerUnit   float64 `json:"average_time_per_unit"`
	AverageTimePerWeight float64 `json:"average_time_per_weight"`
}

// TimeStats summarizes time spent over a set of progress entries. Times are
// in minutes and weights in the unit of Assembly.WeightPerUnit.
type TimeStats struct {
	TotalTime            float64       `json:"total_time"`
	TotalQuantity        int64         `json:"total_quantity"`
	TotalWeight          float64       `json:"total_weight"`
	EntryCount           int           `json:"entry_count"`
	AverageTimePerUnit   float64       `json:"average_time_per_unit"`
	AverageTimePerWeight float64       `json:"average_time_per_weight"`
	PerWorker            []WorkerStats `json:"per_worker"`
}

// TimeStatistics aggregates entries that have already been filtered. An
// entry whose assembly is unknown or has no unit weight contributes zero
// weight but still counts towards quantity and time. Workers are grouped by
// exact name and returned sorted by name.
func TimeStatistics(entries []tracking.ProgressEntry, assemblies []tracking.Assembly) TimeStats {
	byID := indexAssemblies(assemblies)

	var overall accumulator
	groups := make(map[string]*accumulator)
	for _, e := range canonicalEntries(entries) {
		weight := float64(e.QuantityCompleted) * byID[e.AssemblyID].UnitWeight()
		overall.add(e, weight)
		acc, ok := groups[e.WorkerName]
		if !ok {
			acc = &accumulator{}
			groups[e.WorkerName] = acc
		}
		acc.add(e, weight)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := TimeStats{
		TotalTime:            overall.time,
		TotalQuantity:        overall.quantity,
		TotalWeight:          overall.weight,
		EntryCount:           overall.count,
		AverageTimePerUnit:   ratio(overall.time, float64(overall.quantity)),
		AverageTimePerWeight: ratio(overall.time, overall.weight),
		PerWorker:            make([]WorkerStats, 0, len(names)),
	}
	for _, name := range names {
		acc := groups[name]
		stats.PerWorker = append(stats.PerWorker, WorkerStats{
			WorkerName:           name,
			TotalTime:            acc.time,
			TotalQuantity:        acc.quantity,
			TotalWeight:          acc.weight,
			EntryCount:           acc.count,
			AverageTimePerUnit:   ratio(acc.time, float64(acc.quantity)),
			AverageTimePerWeight: ratio(acc.time, acc.weight),
		})
	}
	return stats
}

type accumulator struct {
	time     float64
	quantity int64
	weight   float64
	count    int
}

func (a *accumulator) add(e tracking.ProgressEntry, weight float64) {
	a.time += e.TimeSpent
	a.quantity += int64(e.QuantityCompleted)
	a.weight += weight
	a.count++
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// canonicalEntries returns a copy of entries in a fixed order so that float
// accumulation does not depend on how the caller ordered its input.
func canonicalEntries(in []tracking.ProgressEntry) []tracking.ProgressEntry {
	out := append([]tracking.ProgressEntry(nil), in...)
	sort.Slice(out, func(i, j int) bool { return entryLess(out[i], out[j]) })
	return out
}

func entryLess(a, b tracking.ProgressEntry) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	if a.AssemblyID != b.AssemblyID {
		return a.AssemblyID < b.AssemblyID
	}
	if a.WorkerName != b.WorkerName {
		return a.WorkerName < b.WorkerName
	}
	if a.QuantityCompleted != b.QuantityCompleted {
		return a.QuantityCompleted < b.QuantityCompleted
	}
	return a.TimeSpent < b.TimeSpent
}
