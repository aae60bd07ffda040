// Package sinks implements notify.Sink consumers: Pub/Sub style publishing,
// Prometheus project counters and structured logging.
package sinks
