package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/fabtrack/internal/metrics"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

const defaultOverviewParallelism = 4

// Config controls Service behavior.
type Config struct {
	// ManufacturingStage is the exact stage name used for weight totals.
	ManufacturingStage string
	// OverviewParallelism bounds concurrent per-project loads in Overview.
	OverviewParallelism int
}

// Service loads record snapshots from a tracking.Reader and runs the pure
// aggregation functions over them. Store failures are returned to the caller
// and never reported as zero progress.
type Service struct {
	reader tracking.Reader
	clock  tracking.Clock
	cfg    Config
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(reader tracking.Reader, clock tracking.Clock, cfg Config, logger *zap.Logger) *Service {
	if cfg.ManufacturingStage == "" {
		cfg.ManufacturingStage = DefaultManufacturingStage
	}
	if cfg.OverviewParallelism <= 0 {
		cfg.OverviewParallelism = defaultOverviewParallelism
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reader: reader, clock: clock, cfg: cfg, logger: logger}
}

// ProjectSummary pairs a project with its completion percentage.
type ProjectSummary struct {
	Project tracking.Project `json:"project"`
	Percent float64          `json:"percent"`
}

// TimeQuery carries the filter and presentation parameters of a time report.
type TimeQuery struct {
	Text      string
	StageID   string
	Range     DateRange
	SortKey   SortKey
	SortOrder SortOrder
}

// EntryRow is a filtered entry decorated for display.
type EntryRow struct {
	tracking.ProgressEntry
	AssemblyCode        string `json:"assembly_code"`
	AssemblyDescription string `json:"assembly_description"`
	StageName           string `json:"stage_name"`
}

// TimeReport is the result of a time-tracking query.
type TimeReport struct {
	Stats   TimeStats  `json:"stats"`
	Entries []EntryRow `json:"entries"`
}

type snapshot struct {
	project    tracking.Project
	stages     []tracking.Stage
	assemblies []tracking.Assembly
	entries    []tracking.ProgressEntry
}

// ProjectProgress loads the project's assemblies and their entries and
// returns the completion percentage.
func (s *Service) ProjectProgress(ctx context.Context, projectID string) (pct float64, err error) {
	defer s.observe("project_progress", time.Now(), &err)

	if _, err := s.reader.GetProject(ctx, projectID); err != nil {
		return 0, fmt.Errorf("get project %s: %w", projectID, err)
	}
	assemblies, err := s.reader.ListAssemblies(ctx, tracking.AssemblyQuery{ProjectID: projectID})
	if err != nil {
		return 0, fmt.Errorf("list assemblies: %w", err)
	}
	entries, err := s.entriesFor(ctx, assemblies)
	if err != nil {
		return 0, err
	}
	return ProjectProgress(assemblies, entries), nil
}

// StageProgress returns the completion percentage of a stage within a project.
func (s *Service) StageProgress(ctx context.Context, projectID, stageID string) (pct float64, err error) {
	defer s.observe("stage_progress", time.Now(), &err)

	var (
		stages     []tracking.Stage
		assemblies []tracking.Assembly
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stages, err = s.reader.ListStages(gctx, tracking.StageQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("list stages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		assemblies, err = s.reader.ListAssemblies(gctx, tracking.AssemblyQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("list assemblies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if !containsStage(stages, stageID) {
		return 0, fmt.Errorf("stage %s in project %s: %w", stageID, projectID, tracking.ErrNotFound)
	}
	entries, err := s.reader.ListEntries(ctx, tracking.EntryQuery{StageIDs: []string{stageID}, StageID: stageID})
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	return StageProgress(assemblies, entries, stageID), nil
}

// ProjectWeights returns the manufacturing-stage weight totals of a project.
func (s *Service) ProjectWeights(ctx context.Context, projectID string) (w Weights, err error) {
	defer s.observe("project_weights", time.Now(), &err)

	if _, err := s.reader.GetProject(ctx, projectID); err != nil {
		return Weights{}, fmt.Errorf("get project %s: %w", projectID, err)
	}
	var (
		stages     []tracking.Stage
		assemblies []tracking.Assembly
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stages, err = s.reader.ListStages(gctx, tracking.StageQuery{
			ProjectID: projectID,
			Name:      s.cfg.ManufacturingStage,
		})
		if err != nil {
			return fmt.Errorf("list stages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		assemblies, err = s.reader.ListAssemblies(gctx, tracking.AssemblyQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("list assemblies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Weights{}, err
	}
	return ProjectWeights(stages, assemblies, s.cfg.ManufacturingStage), nil
}

// TimeReport filters the project's entries, aggregates time statistics over
// the filtered set and returns the rows sorted for display.
func (s *Service) TimeReport(ctx context.Context, projectID string, q TimeQuery) (report TimeReport, err error) {
	defer s.observe("time_report", time.Now(), &err)

	snap, err := s.load(ctx, projectID)
	if err != nil {
		return TimeReport{}, err
	}
	filtered := FilterEntries(snap.entries, snap.assemblies, EntryFilter{
		Text:    q.Text,
		StageID: q.StageID,
		Range:   q.Range,
		Now:     s.now(),
	})

	stageNames := make(map[string]string, len(snap.stages))
	for _, st := range snap.stages {
		stageNames[st.ID] = st.Name
	}
	byID := indexAssemblies(snap.assemblies)
	sorted := SortEntries(filtered, q.SortKey, q.SortOrder, stageNames)
	rows := make([]EntryRow, 0, len(sorted))
	for _, e := range sorted {
		a := byID[e.AssemblyID]
		rows = append(rows, EntryRow{
			ProgressEntry:       e,
			AssemblyCode:        a.Code,
			AssemblyDescription: a.Description,
			StageName:           stageNames[e.StageID],
		})
	}
	return TimeReport{
		Stats:   TimeStatistics(filtered, snap.assemblies),
		Entries: rows,
	}, nil
}

// StageBreakdown returns the per-stage overview of a project.
func (s *Service) StageBreakdown(ctx context.Context, projectID string) (b Breakdown, err error) {
	defer s.observe("stage_breakdown", time.Now(), &err)

	snap, err := s.load(ctx, projectID)
	if err != nil {
		return Breakdown{}, err
	}
	return StageBreakdown(snap.stages, snap.assemblies, snap.entries), nil
}

// Overview returns every project with its completion percentage, ordered by
// project name. A failure for any project aborts the whole overview.
func (s *Service) Overview(ctx context.Context) (out []ProjectSummary, err error) {
	defer s.observe("overview", time.Now(), &err)

	projects, err := s.reader.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out = make([]ProjectSummary, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.OverviewParallelism)
	for i, p := range projects {
		g.Go(func() error {
			assemblies, err := s.reader.ListAssemblies(gctx, tracking.AssemblyQuery{ProjectID: p.ID})
			if err != nil {
				return fmt.Errorf("list assemblies for %s: %w", p.ID, err)
			}
			entries, err := s.entriesFor(gctx, assemblies)
			if err != nil {
				return err
			}
			out[i] = ProjectSummary{Project: p, Percent: ProjectProgress(assemblies, entries)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Project.Name != out[j].Project.Name {
			return out[i].Project.Name < out[j].Project.Name
		}
		return out[i].Project.ID < out[j].Project.ID
	})
	return out, nil
}

func (s *Service) load(ctx context.Context, projectID string) (snapshot, error) {
	project, err := s.reader.GetProject(ctx, projectID)
	if err != nil {
		return snapshot{}, fmt.Errorf("get project %s: %w", projectID, err)
	}
	snap := snapshot{project: project}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.stages, err = s.reader.ListStages(gctx, tracking.StageQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("list stages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.assemblies, err = s.reader.ListAssemblies(gctx, tracking.AssemblyQuery{ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("list assemblies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}

	// Entries are matched through the project's stages as well, so entries
	// whose assembly was deleted still count towards time and quantity.
	q := tracking.EntryQuery{StageIDs: make([]string, 0, len(snap.stages))}
	for _, st := range snap.stages {
		q.StageIDs = append(q.StageIDs, st.ID)
	}
	for _, a := range uniqueAssemblies(snap.assemblies) {
		q.AssemblyIDs = append(q.AssemblyIDs, a.ID)
	}
	if len(q.AssemblyIDs) > 0 || len(q.StageIDs) > 0 {
		if snap.entries, err = s.reader.ListEntries(ctx, q); err != nil {
			return snapshot{}, fmt.Errorf("list entries: %w", err)
		}
	}
	return snap, nil
}

// entriesFor lists the entries of the given assemblies. Project progress only
// counts entries of existing assemblies, so no stage matching is needed.
func (s *Service) entriesFor(ctx context.Context, assemblies []tracking.Assembly) ([]tracking.ProgressEntry, error) {
	if len(assemblies) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(assemblies))
	for _, a := range uniqueAssemblies(assemblies) {
		ids = append(ids, a.ID)
	}
	entries, err := s.reader.ListEntries(ctx, tracking.EntryQuery{AssemblyIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	err := *errp
	metrics.ObserveAggregation(operation, err, time.Since(start))
	if err != nil && !errors.Is(err, tracking.ErrNotFound) {
		s.logger.Warn("aggregation failed", zap.String("operation", operation), zap.Error(err))
	}
}

func containsStage(stages []tracking.Stage, stageID string) bool {
	for _, st := range stages {
		if st.ID == stageID {
			return true
		}
	}
	return false
}
