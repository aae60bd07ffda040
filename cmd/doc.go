// Package cmd wires the fabtrack CLI.
//
// Commands:
//   - serve: runs the HTTP API until SIGINT/SIGTERM, then drains requests and
//     flushes pending entry notifications.
//   - report --project ID: exports one project report and prints its URI.
//
// Configuration comes from --config (YAML) with FABTRACK_* environment
// overrides, e.g. FABTRACK_SERVER_PORT or FABTRACK_STORE_PROVIDER=postgres
// together with FABTRACK_DB_DSN.
package cmd
