package progress

import (
	"sort"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// StageSummary is one row of the stage overview.
type StageSummary struct {
	Stage             tracking.Stage `json:"stage"`
	AssemblyCount     int            `json:"assembly_count"`
	TotalQuantity     int64          `json:"total_quantity"`
	CompletedQuantity int64          `json:"completed_quantity"`
	Percent           float64        `json:"percent"`
}

// Breakdown is the per-stage overview of a project.
type Breakdown struct {
	Stages             []StageSummary               `json:"stages"`
	StatusCounts       map[tracking.StageStatus]int `json:"status_counts"`
	UnassignedAssembly int                          `json:"unassigned_assemblies"`
}

// StageBreakdown summarizes every stage ordered by its ordering index, using
// the same clamped percentage rule as StageProgress. CompletedQuantity is the
// raw logged total and may exceed TotalQuantity.
func StageBreakdown(
	stages []tracking.Stage,
	assemblies []tracking.Assembly,
	entries []tracking.ProgressEntry,
) Breakdown {
	ordered := append([]tracking.Stage(nil), stages...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ID < ordered[j].ID
	})

	type totals struct {
		count     int
		quantity  int64
		completed int64
	}
	byStage := make(map[string]*totals, len(ordered))
	for _, s := range ordered {
		byStage[s.ID] = &totals{}
	}

	out := Breakdown{
		Stages:       make([]StageSummary, 0, len(ordered)),
		StatusCounts: make(map[tracking.StageStatus]int, len(tracking.StageStatuses)),
	}
	for _, status := range tracking.StageStatuses {
		out.StatusCounts[status] = 0
	}
	for _, a := range uniqueAssemblies(assemblies) {
		t, ok := byStage[a.StageID]
		if !ok {
			out.UnassignedAssembly++
			continue
		}
		t.count++
		t.quantity += int64(a.TotalQuantity)
	}
	for _, e := range entries {
		if t, ok := byStage[e.StageID]; ok {
			t.completed += int64(e.QuantityCompleted)
		}
	}

	for _, s := range ordered {
		t := byStage[s.ID]
		out.StatusCounts[s.Status]++
		out.Stages = append(out.Stages, StageSummary{
			Stage:             s,
			AssemblyCount:     t.count,
			TotalQuantity:     t.quantity,
			CompletedQuantity: t.completed,
			Percent:           percent(t.completed, t.quantity),
		})
	}
	return out
}
