package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/fabtrack/internal/progress"
)

// LogSink writes one structured log line per notification.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.EntryLoggedEvent) error {
	for _, evt := range batch {
		s.logger.Info("entry notification",
			zap.String("type", evt.Type),
			zap.String("project_id", evt.ProjectID),
			zap.String("entry_id", evt.Entry.ID),
			zap.String("assembly_id", evt.Entry.AssemblyID),
			zap.String("stage_id", evt.Entry.StageID),
			zap.String("worker", evt.Entry.WorkerName),
			zap.Int("quantity", evt.Entry.QuantityCompleted),
			zap.Float64("minutes", evt.Entry.TimeSpent),
			zap.Time("completed_at", evt.Entry.CompletedAt),
		)
	}
	return nil
}

// Close implements notify.Sink; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
