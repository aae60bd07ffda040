// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/fabtrack/internal/api"
	"github.com/JakeFAU/fabtrack/internal/clock/system"
	"github.com/JakeFAU/fabtrack/internal/config"
	"github.com/JakeFAU/fabtrack/internal/id/uuid"
	"github.com/JakeFAU/fabtrack/internal/logging"
	"github.com/JakeFAU/fabtrack/internal/notify"
	"github.com/JakeFAU/fabtrack/internal/notify/sinks"
	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/publisher/memory"
	pubsubpub "github.com/JakeFAU/fabtrack/internal/publisher/pubsub"
	"github.com/JakeFAU/fabtrack/internal/report"
	"github.com/JakeFAU/fabtrack/internal/storage/gcs"
	"github.com/JakeFAU/fabtrack/internal/storage/local"
	memstore "github.com/JakeFAU/fabtrack/internal/storage/memory"
	"github.com/JakeFAU/fabtrack/internal/storage/postgres"
	"github.com/JakeFAU/fabtrack/internal/telemetry"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// Option customizes NewApp.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	clock      tracking.Clock
}

// WithRegisterer registers the notification collectors against reg instead
// of the default Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClock overrides the wall clock.
func WithClock(clock tracking.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// App holds the shared, long-lived services. It is built once at startup and
// closed when the command exits.
type App struct {
	logger    *zap.Logger
	store     tracking.Store
	publisher tracking.Publisher
	blobs     tracking.BlobStore
	hub       *notify.Hub
	tracer    *sdktrace.TracerProvider
	service   *progress.Service
	recorder  *progress.Recorder
	builder   *report.Builder
	exporter  *report.Exporter
	server    *api.Server

	closers []func() error
}

// NewApp creates and initializes an App from cfg. It fails fast if any
// configured backend cannot be initialized and releases whatever was already
// opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer, clock: system.New()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	logger.Info("initializing application services",
		zap.String("store", cfg.Store.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.String("export", cfg.Export.Provider),
	)

	if cfg.Telemetry.TracingEnabled {
		a.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
			ServiceName:    "fabtrack",
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			SampleRatio:    cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		telemetry.Install(a.tracer)
		tp := a.tracer
		a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })
	}

	if a.store, err = newStore(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })

	if err = a.initPublisher(ctx, cfg); err != nil {
		return nil, err
	}
	if err = a.initBlobStore(ctx, cfg); err != nil {
		return nil, err
	}

	sinkList := []notify.Sink{sinks.NewLogSink(logging.Component(logger, "notify"))}
	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if a.publisher != nil {
		pubSink, sinkErr := sinks.NewPublisherSink(a.publisher, cfg.Publisher.Topic, logging.Component(logger, "publisher"))
		if sinkErr != nil {
			return nil, fmt.Errorf("init publisher sink: %w", sinkErr)
		}
		sinkList = append(sinkList, pubSink)
	}
	a.hub = notify.NewHub(notify.Config{
		BufferSize:     cfg.Notify.BufferSize,
		MaxBatchEvents: cfg.Notify.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Notify.MaxBatchWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(cfg.Notify.SinkTimeoutSeconds) * time.Second,
		Logger:         logging.Component(logger, "hub"),
	}, sinkList...)

	a.service = progress.NewService(a.store, o.clock, progress.Config{
		ManufacturingStage:  cfg.Tracking.ManufacturingStage,
		OverviewParallelism: cfg.Tracking.OverviewParallelism,
	}, logging.Component(logger, "progress"))
	a.recorder = progress.NewRecorder(a.store, a.store, a.hub, uuid.New(), o.clock, logging.Component(logger, "recorder"))
	a.builder = report.NewBuilder(a.store, a.service, o.clock)
	a.exporter = report.NewExporter(a.blobs, cfg.Export.Prefix, logging.Component(logger, "report"))

	deps := api.Deps{
		Aggregator: a.service,
		Entries:    a.recorder,
		Reports:    a.builder,
		Exporter:   a.exporter,
		Ready:      a.ready,
	}
	if a.tracer != nil {
		deps.TracerProvider = a.tracer
	}
	a.server = api.NewServer(deps, cfg, logging.Component(logger, "api"))

	logger.Info("application services initialized")
	return a, nil
}

func newStore(ctx context.Context, cfg config.Config) (tracking.Store, error) {
	switch cfg.Store.Provider {
	case config.ProviderMemory:
		if cfg.Store.SnapshotPath == "" {
			return memstore.NewStore(), nil
		}
		store, err := memstore.LoadSnapshotFile(cfg.Store.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		return store, nil
	case config.ProviderPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}

func (a *App) initPublisher(ctx context.Context, cfg config.Config) error {
	switch cfg.Publisher.Provider {
	case config.ProviderNone:
		a.logger.Info("entry notifications are not published")
	case config.ProviderMemory:
		a.publisher = memory.New()
	case config.ProviderPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsubpub.New(client)
		a.publisher = pub
		a.closers = append(a.closers, func() error {
			pub.Close()
			return client.Close()
		})
	default:
		return fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}
	return nil
}

func (a *App) initBlobStore(ctx context.Context, cfg config.Config) error {
	switch cfg.Export.Provider {
	case config.ProviderMemory:
		a.blobs = memstore.NewBlobStore()
	case config.ProviderLocal:
		blobs, err := local.New(local.Config{BaseDir: cfg.Export.BaseDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.blobs = blobs
	case config.ProviderGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Export.GCSBucket, CacheControl: cfg.Export.CacheControl})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.blobs = blobs
		a.closers = append(a.closers, blobs.Close)
	default:
		return fmt.Errorf("unknown export provider: %s", cfg.Export.Provider)
	}
	return nil
}

// ready pings the store when it supports it.
func (a *App) ready(ctx context.Context) error {
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the configured record store.
func (a *App) Store() tracking.Store { return a.store }

// Publisher returns the notification publisher, or nil when disabled.
func (a *App) Publisher() tracking.Publisher { return a.publisher }

// BlobStore returns the report export target.
func (a *App) BlobStore() tracking.BlobStore { return a.blobs }

// Service returns the progress aggregation service.
func (a *App) Service() *progress.Service { return a.service }

// Recorder returns the entry recorder.
func (a *App) Recorder() *progress.Recorder { return a.recorder }

// Reports returns the report builder.
func (a *App) Reports() *report.Builder { return a.builder }

// Exporter returns the report exporter.
func (a *App) Exporter() *report.Exporter { return a.exporter }

// TracerProvider returns the tracer provider, or nil when tracing is off.
func (a *App) TracerProvider() *sdktrace.TracerProvider { return a.tracer }

// Hub returns the notification hub.
func (a *App) Hub() *notify.Hub { return a.hub }

// Handler returns the HTTP handler for use with http.Server.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// ExportReport builds a report for projectID and uploads it, returning the
// object URI.
func (a *App) ExportReport(ctx context.Context, projectID string) (string, error) {
	rep, err := a.builder.Build(ctx, projectID)
	if err != nil {
		return "", err
	}
	return a.exporter.Export(ctx, rep)
}

// Close drains pending notifications and releases every backend. It is safe
// to call once after the HTTP server has stopped accepting requests.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close notification hub: %w", err))
		}
		if dropped := a.hub.Dropped(); dropped > 0 {
			a.logger.Warn("entry notifications dropped", zap.Int64("count", dropped))
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeResources runs closers in reverse order of acquisition.
func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
