package progress

import (
	"sort"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// DefaultManufacturingStage is the stage name whose assemblies form the basis
// of project weight totals.
const DefaultManufacturingStage = "imalat"

// Weights summarizes project tonnage. Completed weight tracking is not
// implemented: Completed is always zero and CompletedTracked always false.
type Weights struct {
	Total            float64 `json:"total"`
	Completed        float64 `json:"completed"`
	CompletedTracked bool    `json:"completed_tracked"`
}

// StageProgress returns the completion percentage of one stage. The
// denominator is the total quantity of assemblies assigned to the stage and
// the numerator the quantity logged by entries recorded against it. The
// result is clamped to [0, 100]; an empty stage reports 0.
func StageProgress(assemblies []tracking.Assembly, entries []tracking.ProgressEntry, stageID string) float64 {
	var total int64
	for _, a := range uniqueAssemblies(assemblies) {
		if a.StageID == stageID {
			total += int64(a.TotalQuantity)
		}
	}
	if total == 0 {
		return 0
	}
	var completed int64
	for _, e := range entries {
		if e.StageID == stageID {
			completed += int64(e.QuantityCompleted)
		}
	}
	return percent(completed, total)
}

// ProjectProgress returns the completion percentage of a project. Each
// assembly contributes its total quantity once, however many stages it passes
// through; only entries referencing one of the given assemblies count.
func ProjectProgress(assemblies []tracking.Assembly, entries []tracking.ProgressEntry) float64 {
	unique := uniqueAssemblies(assemblies)
	owned := make(map[string]struct{}, len(unique))
	var total int64
	for _, a := range unique {
		owned[a.ID] = struct{}{}
		total += int64(a.TotalQuantity)
	}
	if total == 0 {
		return 0
	}
	var completed int64
	for _, e := range entries {
		if _, ok := owned[e.AssemblyID]; ok {
			completed += int64(e.QuantityCompleted)
		}
	}
	return percent(completed, total)
}

// ProjectWeights totals the weight of assemblies in the manufacturing stage.
// Without a stage named exactly manufacturingStage the result is zero.
func ProjectWeights(stages []tracking.Stage, assemblies []tracking.Assembly, manufacturingStage string) Weights {
	stage, ok := findStageByName(stages, manufacturingStage)
	if !ok {
		return Weights{}
	}
	var total float64
	for _, a := range uniqueAssemblies(assemblies) {
		if a.StageID == stage.ID {
			total += float64(a.TotalQuantity) * a.UnitWeight()
		}
	}
	return Weights{Total: total}
}

func findStageByName(stages []tracking.Stage, name string) (tracking.Stage, bool) {
	var (
		found tracking.Stage
		ok    bool
	)
	for _, s := range stages {
		if s.Name != name {
			continue
		}
		if !ok || s.Order < found.Order || (s.Order == found.Order && s.ID < found.ID) {
			found, ok = s, true
		}
	}
	return found, ok
}

func percent(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(completed) / float64(total) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// uniqueAssemblies returns the assemblies sorted by ID with duplicates
// removed, so float sums are independent of input order. When two records
// share an ID the one ordered first by assemblyLess is kept.
func uniqueAssemblies(in []tracking.Assembly) []tracking.Assembly {
	sorted := make([]tracking.Assembly, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return assemblyLess(sorted[i], sorted[j]) })
	out := sorted[:0]
	for i, a := range sorted {
		if i > 0 && a.ID == sorted[i-1].ID {
			continue
		}
		out = append(out, a)
	}
	return out
}

func indexAssemblies(in []tracking.Assembly) map[string]tracking.Assembly {
	unique := uniqueAssemblies(in)
	out := make(map[string]tracking.Assembly, len(unique))
	for _, a := range unique {
		out[a.ID] = a
	}
	return out
}

// assemblyLess is a total order over every assembly field.
func assemblyLess(a, b tracking.Assembly) bool {
	switch {
	case a.ID != b.ID:
		return a.ID < b.ID
	case a.ProjectID != b.ProjectID:
		return a.ProjectID < b.ProjectID
	case a.StageID != b.StageID:
		return a.StageID < b.StageID
	case a.Code != b.Code:
		return a.Code < b.Code
	case a.Description != b.Description:
		return a.Description < b.Description
	case a.TotalQuantity != b.TotalQuantity:
		return a.TotalQuantity < b.TotalQuantity
	case (a.WeightPerUnit == nil) != (b.WeightPerUnit == nil):
		return a.WeightPerUnit == nil
	default:
		return a.UnitWeight() < b.UnitWeight()
	}
}
