package tracking

import (
	"fmt"
	"math"
	"strings"
)

// Validate performs boundary validation on a Project.
func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return invalid("project id is required")
	}
	return nil
}

// Validate performs boundary validation on a Stage.
func (s Stage) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return invalid("stage id is required")
	}
	if strings.TrimSpace(s.ProjectID) == "" {
		return invalid("stage %s: project id is required", s.ID)
	}
	switch s.Status {
	case StageStatusPending, StageStatusInProgress, StageStatusCompleted, StageStatusOnHold:
	default:
		return invalid("stage %s: unknown status %q", s.ID, s.Status)
	}
	return nil
}

// Validate performs boundary validation on an Assembly.
func (a Assembly) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return invalid("assembly id is required")
	}
	if strings.TrimSpace(a.ProjectID) == "" {
		return invalid("assembly %s: project id is required", a.ID)
	}
	if a.TotalQuantity < 0 {
		return invalid("assembly %s: total quantity must be >= 0", a.ID)
	}
	if a.WeightPerUnit != nil && !nonNegative(*a.WeightPerUnit) {
		return invalid("assembly %s: weight per unit must be >= 0", a.ID)
	}
	return nil
}

// Validate performs boundary validation on a ProgressEntry.
func (e ProgressEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return invalid("entry id is required")
	}
	if strings.TrimSpace(e.AssemblyID) == "" {
		return invalid("entry %s: assembly id is required", e.ID)
	}
	if strings.TrimSpace(e.StageID) == "" {
		return invalid("entry %s: stage id is required", e.ID)
	}
	if e.QuantityCompleted < 0 {
		return invalid("entry %s: quantity completed must be >= 0", e.ID)
	}
	if !nonNegative(e.TimeSpent) {
		return invalid("entry %s: time spent must be >= 0", e.ID)
	}
	if e.CompletedAt.IsZero() {
		return invalid("entry %s: completion date is required", e.ID)
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}
