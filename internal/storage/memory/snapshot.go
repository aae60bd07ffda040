package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// Snapshot is the YAML seed format for the memory store.
type Snapshot struct {
	Projects []SnapshotProject `yaml:"projects"`
}

// SnapshotProject nests a project's stages, assemblies and entries.
type SnapshotProject struct {
	ID         string             `yaml:"id"`
	Name       string             `yaml:"name"`
	Stages     []SnapshotStage    `yaml:"stages"`
	Assemblies []SnapshotAssembly `yaml:"assemblies"`
	Entries    []SnapshotEntry    `yaml:"entries"`
}

// SnapshotStage is a stage row in a Snapshot.
type SnapshotStage struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Order  int    `yaml:"order"`
	Status string `yaml:"status"`
}

// SnapshotAssembly is an assembly row in a Snapshot.
type SnapshotAssembly struct {
	ID            string   `yaml:"id"`
	StageID       string   `yaml:"stage_id"`
	Code          string   `yaml:"code"`
	Description   string   `yaml:"description"`
	TotalQuantity int      `yaml:"total_quantity"`
	WeightPerUnit *float64 `yaml:"weight_per_unit"`
}

// SnapshotEntry is a progress entry row in a Snapshot.
type SnapshotEntry struct {
	ID                string    `yaml:"id"`
	AssemblyID        string    `yaml:"assembly_id"`
	StageID           string    `yaml:"work_stage_id"`
	WorkerID          string    `yaml:"worker_id"`
	WorkerName        string    `yaml:"worker_name"`
	QuantityCompleted int       `yaml:"quantity_completed"`
	TimeSpent         float64   `yaml:"time_spent"`
	CompletedAt       time.Time `yaml:"completion_date"`
}

// LoadSnapshotFile opens path and loads it into a new Store.
func LoadSnapshotFile(path string) (*Store, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied seed file.
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return LoadSnapshot(f)
}

// LoadSnapshot decodes a YAML snapshot into a new Store. Every record passes
// boundary validation; the first malformed record aborts the load.
func LoadSnapshot(r io.Reader) (*Store, error) {
	var snap Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	s := NewStore()
	ctx := context.Background()
	for _, p := range snap.Projects {
		if err := s.PutProject(tracking.Project{ID: p.ID, Name: p.Name}); err != nil {
			return nil, err
		}
		for _, st := range p.Stages {
			status, err := tracking.ParseStageStatus(defaultString(st.Status, string(tracking.StageStatusPending)))
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", st.ID, err)
			}
			if err := s.PutStage(tracking.Stage{
				ID:        st.ID,
				ProjectID: p.ID,
				Name:      st.Name,
				Order:     st.Order,
				Status:    status,
			}); err != nil {
				return nil, err
			}
		}
		for _, a := range p.Assemblies {
			if err := s.PutAssembly(tracking.Assembly{
				ID:            a.ID,
				ProjectID:     p.ID,
				StageID:       a.StageID,
				Code:          a.Code,
				Description:   a.Description,
				TotalQuantity: a.TotalQuantity,
				WeightPerUnit: a.WeightPerUnit,
			}); err != nil {
				return nil, err
			}
		}
		for _, e := range p.Entries {
			if err := s.CreateEntry(ctx, tracking.ProgressEntry{
				ID:                e.ID,
				AssemblyID:        e.AssemblyID,
				StageID:           e.StageID,
				WorkerID:          e.WorkerID,
				WorkerName:        e.WorkerName,
				QuantityCompleted: e.QuantityCompleted,
				TimeSpent:         e.TimeSpent,
				CompletedAt:       e.CompletedAt.UTC(),
			}); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
