package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/fabtrack/internal/progress"
)

// PrometheusSink keeps per-project counters of delivered entries.
type PrometheusSink struct {
	entries *prometheus.CounterVec
	units   *prometheus.CounterVec
	minutes *prometheus.CounterVec
	stages  *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against reg (the default
// registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabtrack_project_entries_total",
			Help: "Progress entries delivered, per project.",
		}, []string{"project"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabtrack_project_units_completed_total",
			Help: "Completed units delivered, per project.",
		}, []string{"project"}),
		minutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabtrack_project_minutes_spent_total",
			Help: "Minutes of logged work delivered, per project.",
		}, []string{"project"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabtrack_project_stage_entries_total",
			Help: "Progress entries delivered, per project and stage.",
		}, []string{"project", "stage"}),
	}
	for _, c := range []prometheus.Collector{s.entries, s.units, s.minutes, s.stages} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register notification collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the counters from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.EntryLoggedEvent) error {
	for _, evt := range batch {
		s.entries.WithLabelValues(evt.ProjectID).Inc()
		s.units.WithLabelValues(evt.ProjectID).Add(float64(evt.Entry.QuantityCompleted))
		s.minutes.WithLabelValues(evt.ProjectID).Add(evt.Entry.TimeSpent)
		s.stages.WithLabelValues(evt.ProjectID, evt.Entry.StageID).Inc()
	}
	return nil
}

// Close implements notify.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
