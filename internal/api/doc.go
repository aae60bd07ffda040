// Package api hosts the HTTP server, middleware, and REST handlers for
// fabtrack. Notable routes:
//   - GET /healthz and /readyz for Kubernetes liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/projects and /v1/projects/{project_id}/... for progress,
//     weights, stage breakdowns and time statistics.
//   - POST /v1/entries to log work against an assembly.
//   - POST /v1/projects/{project_id}/reports to export a JSON report.
//
// When auth is enabled every /v1 route requires the X-API-Key header (or the
// api_key query parameter); health checks and /metrics stay open.
package api
