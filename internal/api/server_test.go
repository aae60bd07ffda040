package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/fabtrack/internal/config"
	"github.com/JakeFAU/fabtrack/internal/id/uuid"
	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/report"
	"github.com/JakeFAU/fabtrack/internal/storage/memory"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5},
		Logging: config.LoggingConfig{Development: true},
	}
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	w := 2.5
	s := memory.NewStore()
	require.NoError(t, s.PutProject(tracking.Project{ID: "p1", Name: "Hangar"}))
	require.NoError(t, s.PutProject(tracking.Project{ID: "p2", Name: "Bridge"}))
	require.NoError(t, s.PutStage(tracking.Stage{ID: "s1", ProjectID: "p1", Name: "imalat", Order: 1, Status: tracking.StageStatusInProgress}))
	require.NoError(t, s.PutStage(tracking.Stage{ID: "s2", ProjectID: "p1", Name: "montaj", Order: 2, Status: tracking.StageStatusPending}))
	require.NoError(t, s.PutStage(tracking.Stage{ID: "s9", ProjectID: "p2", Name: "imalat", Order: 1, Status: tracking.StageStatusPending}))
	require.NoError(t, s.PutAssembly(tracking.Assembly{
		ID: "a1", ProjectID: "p1", StageID: "s1", Code: "K-01", Description: "Kolon", TotalQuantity: 10, WeightPerUnit: &w,
	}))
	require.NoError(t, s.PutAssembly(tracking.Assembly{
		ID: "a2", ProjectID: "p1", StageID: "s2", Code: "B-07", Description: "Bulon", TotalQuantity: 5,
	}))
	ctx := context.Background()
	require.NoError(t, s.CreateEntry(ctx, tracking.ProgressEntry{
		ID: "e1", AssemblyID: "a1", StageID: "s1", WorkerName: "Ali", QuantityCompleted: 4, TimeSpent: 40,
		CompletedAt: testNow.Add(-time.Hour),
	}))
	require.NoError(t, s.CreateEntry(ctx, tracking.ProgressEntry{
		ID: "e2", AssemblyID: "a2", StageID: "s2", WorkerName: "Veli", QuantityCompleted: 5, TimeSpent: 30,
		CompletedAt: testNow.Add(-10 * 24 * time.Hour),
	}))
	return s
}

type testEnv struct {
	server *Server
	store  *memory.Store
	blobs  *memory.BlobStore
}

func newTestEnv(t *testing.T, cfg config.Config) testEnv {
	t.Helper()
	store := seedStore(t)
	clock := fakeClock{now: testNow}
	svc := progress.NewService(store, clock, progress.Config{}, nil)
	blobs := memory.NewBlobStore()
	deps := Deps{
		Aggregator: svc,
		Entries:    progress.NewRecorder(store, store, nil, uuid.New(), clock, nil),
		Reports:    report.NewBuilder(store, svc, clock),
		Exporter:   report.NewExporter(blobs, "reports", nil),
	}
	return testEnv{server: NewServer(deps, cfg, zap.NewNop()), store: store, blobs: blobs}
}

func serve(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testConfig())
	require.Equal(t, http.StatusOK, serve(t, env.server, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, serve(t, env.server, http.MethodGet, "/readyz", nil).Code)

	rec := serve(t, env.server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_ReadyzReportsDependencyFailure(t *testing.T) {
	t.Parallel()

	deps := Deps{
		Aggregator: progress.NewService(memory.NewStore(), fakeClock{now: testNow}, progress.Config{}, nil),
		Ready:      func(context.Context) error { return errors.New("db unreachable") },
	}
	server := NewServer(deps, testConfig(), zap.NewNop())
	rec := serve(t, server, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "not ready")
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	env := newTestEnv(t, cfg)

	rec := serve(t, env.server, http.MethodGet, "/v1/projects", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, env.server, http.MethodGet, "/v1/projects?api_key=secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, env.server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code, "health checks stay open")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testConfig())
	rec := serve(t, env.server, http.MethodGet, "/healthz", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

type panickingAggregator struct{ Aggregator }

func (panickingAggregator) Overview(context.Context) ([]progress.ProjectSummary, error) {
	panic("boom")
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	server := NewServer(Deps{Aggregator: panickingAggregator{}}, testConfig(), zap.NewNop())
	rec := serve(t, server, http.MethodGet, "/v1/projects", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

type stubHijacker struct {
	http.ResponseWriter
	called bool
}

func (s *stubHijacker) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.called = true
	return nil, nil, errors.New("hijack failed")
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.Error(t, err)

	stub := &stubHijacker{ResponseWriter: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: stub}
	_, _, err = rw.Hijack()
	require.True(t, stub.called)
	require.True(t, strings.Contains(err.Error(), "hijack connection"))
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.RateLimitRPS = 0.001
	cfg.Server.RateLimitBurst = 1
	env := newTestEnv(t, cfg)

	body := []byte(`{"assembly_id":"a1","work_stage_id":"s1","worker_name":"Ayse","quantity_completed":1}`)
	rec := serve(t, env.server, http.MethodPost, "/v1/entries", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, env.server, http.MethodPost, "/v1/entries", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodPost, "/v1/entries", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "other-client")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, "buckets are per client")

	for i := 0; i < 3; i++ {
		rec = serve(t, env.server, http.MethodGet, "/v1/projects/p1/progress", nil)
		require.Equal(t, http.StatusOK, rec.Code, "reads are not throttled")
	}
}

func TestServerTracesRequests(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	core, logs := observer.New(zapcore.InfoLevel)
	deps := Deps{
		Aggregator:     progress.NewService(seedStore(t), fakeClock{now: testNow}, progress.Config{}, nil),
		TracerProvider: tp,
	}
	server := NewServer(deps, testConfig(), zap.New(core))

	rec := serve(t, server, http.MethodGet, "/v1/projects/p1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /v1/projects/p1/progress", spans[0].Name())

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	require.Equal(t, spans[0].SpanContext().TraceID().String(), entries[0].ContextMap()["trace_id"])
}
