// Package tracking defines the project, stage, assembly and progress entry
// records shared across subsystems, plus the store interfaces that feed them.
package tracking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRecord signals that a record failed boundary validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// StageStatus represents the lifecycle state of a work stage.
type StageStatus string

// Stage status values persisted in the stages table.
const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusOnHold     StageStatus = "on_hold"
)

// StageStatuses lists every known status in display order.
var StageStatuses = []StageStatus{
	StageStatusPending,
	StageStatusInProgress,
	StageStatusCompleted,
	StageStatusOnHold,
}

// ParseStageStatus normalizes user or database input into a StageStatus.
func ParseStageStatus(input string) (StageStatus, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "pending":
		return StageStatusPending, nil
	case "in_progress", "in-progress", "inprogress":
		return StageStatusInProgress, nil
	case "completed", "done":
		return StageStatusCompleted, nil
	case "on_hold", "on-hold", "onhold":
		return StageStatusOnHold, nil
	default:
		return "", fmt.Errorf("%w: unknown stage status %q", ErrInvalidRecord, input)
	}
}

// Project owns stages and assemblies.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stage is an ordered phase of a project.
type Stage struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	Name      string      `json:"name"`
	Order     int         `json:"order"`
	Status    StageStatus `json:"status"`
}

// Assembly is a trackable line item within a project. StageID is empty when
// the assembly is not assigned to a stage.
type Assembly struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	StageID       string   `json:"stage_id,omitempty"`
	Code          string   `json:"code"`
	Description   string   `json:"description"`
	TotalQuantity int      `json:"total_quantity"`
	WeightPerUnit *float64 `json:"weight_per_unit,omitempty"`
}

// UnitWeight returns the weight per unit, treating a missing weight as zero.
func (a Assembly) UnitWeight() float64 {
	if a.WeightPerUnit == nil {
		return 0
	}
	return *a.WeightPerUnit
}

// ProgressEntry records work performed against one assembly within one stage.
// Entries are immutable once logged.
type ProgressEntry struct {
	ID                string    `json:"id"`
	AssemblyID        string    `json:"assembly_id"`
	StageID           string    `json:"work_stage_id"`
	WorkerID          string    `json:"worker_id,omitempty"`
	WorkerName        string    `json:"worker_name"`
	QuantityCompleted int       `json:"quantity_completed"`
	TimeSpent         float64   `json:"time_spent"` // minutes
	CompletedAt       time.Time `json:"completion_date"`
}

// AssemblyQuery scopes ListAssemblies. StageID is optional.
type AssemblyQuery struct {
	ProjectID string
	StageID   string
}

// EntryQuery scopes ListEntries. An entry matches when its assembly is in
// AssemblyIDs or its stage is in StageIDs; StageID then narrows the result to
// one stage. Matching by stage keeps entries whose assembly was deleted.
type EntryQuery struct {
	AssemblyIDs []string
	StageIDs    []string
	StageID     string
}

// StageQuery scopes ListStages. Name is an exact match when set.
type StageQuery struct {
	ProjectID string
	Name      string
}
