// Package report builds point-in-time project reports and exports them as
// JSON documents to a blob store.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/fabtrack/internal/hash/sha256"
	"github.com/JakeFAU/fabtrack/internal/metrics"
	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

var tracer = otel.Tracer("github.com/JakeFAU/fabtrack/internal/report")

// timestampLayout names exported objects; it sorts lexically by time.
const timestampLayout = "20060102T150405Z"

// ProjectReport is the exported document.
type ProjectReport struct {
	Project     tracking.Project   `json:"project"`
	GeneratedAt time.Time          `json:"generated_at"`
	Percent     float64            `json:"percent"`
	Weights     progress.Weights   `json:"weights"`
	Breakdown   progress.Breakdown `json:"breakdown"`
	Time        progress.TimeStats `json:"time"`
}

// Aggregator is the subset of progress.Service the Builder needs.
type Aggregator interface {
	ProjectProgress(ctx context.Context, projectID string) (float64, error)
	ProjectWeights(ctx context.Context, projectID string) (progress.Weights, error)
	StageBreakdown(ctx context.Context, projectID string) (progress.Breakdown, error)
	TimeReport(ctx context.Context, projectID string, q progress.TimeQuery) (progress.TimeReport, error)
}

// Builder assembles ProjectReports.
type Builder struct {
	reader tracking.Reader
	agg    Aggregator
	clock  tracking.Clock
}

// NewBuilder constructs a Builder.
func NewBuilder(reader tracking.Reader, agg Aggregator, clock tracking.Clock) *Builder {
	return &Builder{reader: reader, agg: agg, clock: clock}
}

// Build runs every aggregation for the project concurrently. Any failure
// aborts the report.
func (b *Builder) Build(ctx context.Context, projectID string) (_ ProjectReport, err error) {
	ctx, span := tracer.Start(ctx, "report.Build")
	span.SetAttributes(attribute.String("project_id", projectID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "build report")
		}
		span.End()
	}()

	project, err := b.reader.GetProject(ctx, projectID)
	if err != nil {
		return ProjectReport{}, fmt.Errorf("get project %s: %w", projectID, err)
	}
	rep := ProjectReport{Project: project, GeneratedAt: b.clock.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rep.Percent, err = b.agg.ProjectProgress(gctx, projectID)
		return err
	})
	g.Go(func() (err error) {
		rep.Weights, err = b.agg.ProjectWeights(gctx, projectID)
		return err
	})
	g.Go(func() (err error) {
		rep.Breakdown, err = b.agg.StageBreakdown(gctx, projectID)
		return err
	})
	g.Go(func() error {
		tr, err := b.agg.TimeReport(gctx, projectID, progress.TimeQuery{Range: progress.RangeAll})
		rep.Time = tr.Stats
		return err
	})
	if err := g.Wait(); err != nil {
		return ProjectReport{}, fmt.Errorf("build report for %s: %w", projectID, err)
	}
	return rep, nil
}

// Exporter writes reports to a blob store under
// <prefix>/<project_id>/<timestamp>.json.
type Exporter struct {
	store  tracking.BlobStore
	prefix string
	hasher *sha256.Hasher
	logger *zap.Logger
}

// NewExporter constructs an Exporter. prefix may be empty.
func NewExporter(store tracking.BlobStore, prefix string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, prefix: prefix, hasher: sha256.New(), logger: logger}
}

// ObjectPath returns the blob path a report is written to.
func (e *Exporter) ObjectPath(rep ProjectReport) string {
	return path.Join(e.prefix, rep.Project.ID, rep.GeneratedAt.UTC().Format(timestampLayout)+".json")
}

// Export marshals rep and uploads it, returning the object URI.
func (e *Exporter) Export(ctx context.Context, rep ProjectReport) (uri string, err error) {
	defer func() { metrics.ObserveReportExport(err) }()

	if rep.Project.ID == "" {
		return "", fmt.Errorf("%w: report has no project", tracking.ErrInvalidRecord)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	objectPath := e.ObjectPath(rep)
	uri, err = e.store.PutObject(ctx, objectPath, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", objectPath, err)
	}
	e.logger.Info("report exported",
		zap.String("project_id", rep.Project.ID),
		zap.String("uri", uri),
		zap.Int("bytes", len(data)),
		zap.String("sha256", e.hasher.Hash(data)),
	)
	return uri, nil
}
