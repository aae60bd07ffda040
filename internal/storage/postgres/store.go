// Package postgres provides the Postgres-backed tracking store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// Postgres error codes mapped to tracking.ErrInvalidRecord on insert.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements tracking.Store on top of pgx. It expects the schema:
//
//	projects(id TEXT PRIMARY KEY, name TEXT)
//	stages(id TEXT PRIMARY KEY, project_id TEXT, stage_name TEXT, order_index INT, status TEXT)
//	assemblies(id TEXT PRIMARY KEY, project_id TEXT, stage_id TEXT NULL, code TEXT,
//	           description TEXT, total_quantity INT, weight_per_unit NUMERIC NULL)
//	progress_entries(id TEXT PRIMARY KEY, assembly_id TEXT, work_stage_id TEXT, worker_id TEXT,
//	                 worker_name TEXT, quantity_completed INT, time_spent NUMERIC,
//	                 completion_date TIMESTAMPTZ)
type Store struct {
	pool querier
}

// NewStore creates a pooled Store using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks database connectivity for the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// ListProjects returns all projects ordered by ID.
func (s *Store) ListProjects(ctx context.Context) ([]tracking.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM projects ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []tracking.Project
	for rows.Next() {
		var p tracking.Project
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return out, nil
}

// GetProject retrieves a single project by its ID.
func (s *Store) GetProject(ctx context.Context, projectID string) (tracking.Project, error) {
	var p tracking.Project
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM projects WHERE id = $1;`, projectID).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tracking.Project{}, tracking.ErrNotFound
		}
		return tracking.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

const assemblyColumns = `id, project_id, COALESCE(stage_id, ''), code, description, total_quantity,
	weight_per_unit IS NOT NULL, COALESCE(weight_per_unit, 0)::float8`

// GetAssembly retrieves a single assembly by its ID.
func (s *Store) GetAssembly(ctx context.Context, assemblyID string) (tracking.Assembly, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assemblyColumns+` FROM assemblies WHERE id = $1;`, assemblyID)
	a, err := scanAssembly(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tracking.Assembly{}, tracking.ErrNotFound
		}
		return tracking.Assembly{}, fmt.Errorf("failed to get assembly: %w", err)
	}
	return a, nil
}

// ListAssemblies returns the assemblies of a project, optionally restricted to a stage.
func (s *Store) ListAssemblies(ctx context.Context, q tracking.AssemblyQuery) ([]tracking.Assembly, error) {
	query := `
		SELECT ` + assemblyColumns + `
		FROM assemblies
		WHERE project_id = $1 AND ($2::text = '' OR stage_id = $2::text)
		ORDER BY id;
	`
	rows, err := s.pool.Query(ctx, query, q.ProjectID, q.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assemblies: %w", err)
	}
	defer rows.Close()

	var out []tracking.Assembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assembly row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assemblies: %w", err)
	}
	return out, nil
}

// ListEntries returns entries for the given assemblies or stages, optionally
// restricted to one stage. Entries of deleted assemblies are still found
// through their stage.
func (s *Store) ListEntries(ctx context.Context, q tracking.EntryQuery) ([]tracking.ProgressEntry, error) {
	if len(q.AssemblyIDs) == 0 && len(q.StageIDs) == 0 {
		return nil, nil
	}
	assemblyIDs, stageIDs := q.AssemblyIDs, q.StageIDs
	if assemblyIDs == nil {
		assemblyIDs = []string{}
	}
	if stageIDs == nil {
		stageIDs = []string{}
	}
	query := `
		SELECT id, assembly_id, work_stage_id, COALESCE(worker_id, ''), worker_name,
			quantity_completed, time_spent::float8, completion_date
		FROM progress_entries
		WHERE (assembly_id = ANY($1) OR work_stage_id = ANY($2))
			AND ($3::text = '' OR work_stage_id = $3::text)
		ORDER BY completion_date, id;
	`
	rows, err := s.pool.Query(ctx, query, assemblyIDs, stageIDs, q.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var out []tracking.ProgressEntry
	for rows.Next() {
		var e tracking.ProgressEntry
		err := rows.Scan(
			&e.ID,
			&e.AssemblyID,
			&e.StageID,
			&e.WorkerID,
			&e.WorkerName,
			&e.QuantityCompleted,
			&e.TimeSpent,
			&e.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return out, nil
}

// ListStages returns stages filtered by project and/or exact name.
func (s *Store) ListStages(ctx context.Context, q tracking.StageQuery) ([]tracking.Stage, error) {
	query := `
		SELECT id, project_id, stage_name, order_index, status
		FROM stages
		WHERE ($1::text = '' OR project_id = $1::text) AND ($2::text = '' OR stage_name = $2::text)
		ORDER BY order_index, id;
	`
	rows, err := s.pool.Query(ctx, query, q.ProjectID, q.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var out []tracking.Stage
	for rows.Next() {
		var (
			st     tracking.Stage
			status string
		)
		if err := rows.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Order, &status); err != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", err)
		}
		parsed, err := tracking.ParseStageStatus(status)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.ID, err)
		}
		st.Status = parsed
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stages: %w", err)
	}
	return out, nil
}

// CreateEntry inserts a progress entry. Constraint violations are reported as
// tracking.ErrInvalidRecord.
func (s *Store) CreateEntry(ctx context.Context, e tracking.ProgressEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO progress_entries (
			id, assembly_id, work_stage_id, worker_id, worker_name,
			quantity_completed, time_spent, completion_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, query,
		e.ID,
		e.AssemblyID,
		e.StageID,
		e.WorkerID,
		e.WorkerName,
		e.QuantityCompleted,
		e.TimeSpent,
		e.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation, foreignKeyViolation, checkViolation:
				return fmt.Errorf("%w: %s", tracking.ErrInvalidRecord, pgErr.Message)
			}
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func scanAssembly(row pgx.Row) (tracking.Assembly, error) {
	var (
		a         tracking.Assembly
		hasWeight bool
		weight    float64
	)
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.StageID,
		&a.Code,
		&a.Description,
		&a.TotalQuantity,
		&hasWeight,
		&weight,
	)
	if err != nil {
		return tracking.Assembly{}, err //nolint:wrapcheck // callers wrap with context
	}
	if hasWeight {
		a.WeightPerUnit = &weight
	}
	if err := a.Validate(); err != nil {
		return tracking.Assembly{}, err
	}
	return a, nil
}
