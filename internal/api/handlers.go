package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

const maxEntryBodyBytes = 1 << 16

type percentResponse struct {
	ProjectID string  `json:"project_id"`
	StageID   string  `json:"stage_id,omitempty"`
	Percent   float64 `json:"percent"`
}

type weightsResponse struct {
	ProjectID string           `json:"project_id"`
	Weights   progress.Weights `json:"weights"`
}

type breakdownResponse struct {
	ProjectID string `json:"project_id"`
	progress.Breakdown
}

type timeStatsResponse struct {
	ProjectID string `json:"project_id"`
	progress.TimeReport
}

type exportResponse struct {
	ProjectID   string    `json:"project_id"`
	URI         string    `json:"uri"`
	GeneratedAt time.Time `json:"generated_at"`
	Percent     float64   `json:"percent"`
}

// listProjects handles GET /v1/projects and returns {"projects": [...]}
// sorted by project name.
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Aggregator.Overview(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (s *Server) projectProgress(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	pct, err := s.deps.Aggregator.ProjectProgress(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to compute project progress")
		return
	}
	writeJSON(w, http.StatusOK, percentResponse{ProjectID: projectID, Percent: pct})
}

func (s *Server) stageProgress(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	stageID := chi.URLParam(r, "stage_id")
	pct, err := s.deps.Aggregator.StageProgress(r.Context(), projectID, stageID)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to compute stage progress")
		return
	}
	writeJSON(w, http.StatusOK, percentResponse{ProjectID: projectID, StageID: stageID, Percent: pct})
}

func (s *Server) projectWeights(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	weights, err := s.deps.Aggregator.ProjectWeights(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to compute project weights")
		return
	}
	writeJSON(w, http.StatusOK, weightsResponse{ProjectID: projectID, Weights: weights})
}

func (s *Server) stageBreakdown(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	b, err := s.deps.Aggregator.StageBreakdown(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to compute stage breakdown")
		return
	}
	writeJSON(w, http.StatusOK, breakdownResponse{ProjectID: projectID, Breakdown: b})
}

// timeStats handles GET /v1/projects/{project_id}/time-stats with the optional
// query parameters q, stage, range, sort and order. Unknown range, sort or
// order values are rejected with 400.
func (s *Server) timeStats(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	query := r.URL.Query()

	dateRange, err := progress.ParseDateRange(query.Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortKey, err := progress.ParseSortKey(query.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortOrder, err := progress.ParseSortOrder(query.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.deps.Aggregator.TimeReport(r.Context(), projectID, progress.TimeQuery{
		Text:      strings.TrimSpace(query.Get("q")),
		StageID:   strings.TrimSpace(query.Get("stage")),
		Range:     dateRange,
		SortKey:   sortKey,
		SortOrder: sortOrder,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "failed to compute time statistics")
		return
	}
	writeJSON(w, http.StatusOK, timeStatsResponse{ProjectID: projectID, TimeReport: rep})
}

// createEntry handles POST /v1/entries. The body is a progress.NewEntry; the
// stored entry is returned with 201.
func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	if s.deps.Entries == nil {
		writeError(w, http.StatusServiceUnavailable, "entry logging unavailable")
		return
	}
	var req progress.NewEntry
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntryBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	entry, err := s.deps.Entries.LogEntry(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to log entry")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]tracking.ProgressEntry{"entry": entry})
}

// exportReport handles POST /v1/projects/{project_id}/reports. It builds a
// fresh report and uploads it through the configured exporter.
func (s *Server) exportReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil || s.deps.Exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "report export unavailable")
		return
	}
	projectID := chi.URLParam(r, "project_id")
	rep, err := s.deps.Reports.Build(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to build report")
		return
	}
	uri, err := s.deps.Exporter.Export(r.Context(), rep)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to export report")
		return
	}
	s.logger.Info("report exported via API",
		zap.String("project_id", projectID),
		zap.String("uri", uri),
		zap.String("request_id", RequestID(r.Context())),
	)
	writeJSON(w, http.StatusCreated, exportResponse{
		ProjectID:   projectID,
		URI:         uri,
		GeneratedAt: rep.GeneratedAt,
		Percent:     rep.Percent,
	})
}
