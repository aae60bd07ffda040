// Package memory provides an in-memory tracking store for development and
// testing, optionally seeded from a YAML snapshot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// Store keeps projects, stages, assemblies and entries in maps guarded by a
// RWMutex. Every read returns copies.
type Store struct {
	mu         sync.RWMutex
	projects   map[string]tracking.Project
	stages     map[string]tracking.Stage
	assemblies map[string]tracking.Assembly
	entries    map[string]tracking.ProgressEntry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		projects:   make(map[string]tracking.Project),
		stages:     make(map[string]tracking.Stage),
		assemblies: make(map[string]tracking.Assembly),
		entries:    make(map[string]tracking.ProgressEntry),
	}
}

// PutProject inserts or replaces a project.
func (s *Store) PutProject(p tracking.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

// PutStage inserts or replaces a stage. The owning project must exist.
func (s *Store) PutStage(st tracking.Stage) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[st.ProjectID]; !ok {
		return fmt.Errorf("%w: stage %s references unknown project %s", tracking.ErrInvalidRecord, st.ID, st.ProjectID)
	}
	s.stages[st.ID] = st
	return nil
}

// PutAssembly inserts or replaces an assembly. The owning project (and stage,
// when set) must exist.
func (s *Store) PutAssembly(a tracking.Assembly) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.WeightPerUnit != nil {
		w := *a.WeightPerUnit
		a.WeightPerUnit = &w
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[a.ProjectID]; !ok {
		return fmt.Errorf("%w: assembly %s references unknown project %s", tracking.ErrInvalidRecord, a.ID, a.ProjectID)
	}
	if a.StageID != "" {
		if _, ok := s.stages[a.StageID]; !ok {
			return fmt.Errorf("%w: assembly %s references unknown stage %s", tracking.ErrInvalidRecord, a.ID, a.StageID)
		}
	}
	s.assemblies[a.ID] = a
	return nil
}

// DeleteAssembly removes an assembly. Its entries are kept, mirroring a store
// without cascade delete.
func (s *Store) DeleteAssembly(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assemblies[id]; !ok {
		return tracking.ErrNotFound
	}
	delete(s.assemblies, id)
	return nil
}

// CreateEntry stores a new progress entry. Entries are immutable, so an
// existing ID is rejected.
func (s *Store) CreateEntry(_ context.Context, e tracking.ProgressEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.ID]; exists {
		return fmt.Errorf("%w: entry %s already exists", tracking.ErrInvalidRecord, e.ID)
	}
	if _, ok := s.assemblies[e.AssemblyID]; !ok {
		return fmt.Errorf("%w: entry %s references unknown assembly %s", tracking.ErrInvalidRecord, e.ID, e.AssemblyID)
	}
	s.entries[e.ID] = e
	return nil
}

// ListProjects returns all projects ordered by ID.
func (s *Store) ListProjects(_ context.Context) ([]tracking.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tracking.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(_ context.Context, projectID string) (tracking.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return tracking.Project{}, tracking.ErrNotFound
	}
	return p, nil
}

// GetAssembly fetches an assembly by ID.
func (s *Store) GetAssembly(_ context.Context, assemblyID string) (tracking.Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assemblies[assemblyID]
	if !ok {
		return tracking.Assembly{}, tracking.ErrNotFound
	}
	return copyAssembly(a), nil
}

// ListAssemblies returns the assemblies of a project, optionally restricted
// to one stage, ordered by ID.
func (s *Store) ListAssemblies(_ context.Context, q tracking.AssemblyQuery) ([]tracking.Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tracking.Assembly, 0)
	for _, a := range s.assemblies {
		if a.ProjectID != q.ProjectID {
			continue
		}
		if q.StageID != "" && a.StageID != q.StageID {
			continue
		}
		out = append(out, copyAssembly(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEntries returns entries for the given assemblies or stages, optionally
// restricted to one stage, ordered by completion date then ID.
func (s *Store) ListEntries(_ context.Context, q tracking.EntryQuery) ([]tracking.ProgressEntry, error) {
	assemblies := toSet(q.AssemblyIDs)
	stages := toSet(q.StageIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tracking.ProgressEntry, 0)
	for _, e := range s.entries {
		_, byAssembly := assemblies[e.AssemblyID]
		_, byStage := stages[e.StageID]
		if !byAssembly && !byStage {
			continue
		}
		if q.StageID != "" && e.StageID != q.StageID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListStages returns stages filtered by project and/or exact name, ordered by
// ordering index then ID.
func (s *Store) ListStages(_ context.Context, q tracking.StageQuery) ([]tracking.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tracking.Stage, 0)
	for _, st := range s.stages {
		if q.ProjectID != "" && st.ProjectID != q.ProjectID {
			continue
		}
		if q.Name != "" && st.Name != q.Name {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close implements tracking.Store; it performs no action.
func (s *Store) Close() {}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func copyAssembly(a tracking.Assembly) tracking.Assembly {
	if a.WeightPerUnit != nil {
		w := *a.WeightPerUnit
		a.WeightPerUnit = &w
	}
	return a
}
