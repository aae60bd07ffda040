package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/fabtrack/internal/metrics"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// EventEntryLogged is the notification type published for accepted entries.
const EventEntryLogged = "entry.logged"

// NewEntry is the input for logging work against an assembly. CompletedAt
// defaults to the recorder clock when nil.
type NewEntry struct {
	AssemblyID        string     `json:"assembly_id"`
	StageID           string     `json:"work_stage_id"`
	WorkerID          string     `json:"worker_id"`
	WorkerName        string     `json:"worker_name"`
	QuantityCompleted int        `json:"quantity_completed"`
	TimeSpent         float64    `json:"time_spent"`
	CompletedAt       *time.Time `json:"completion_date"`
}

// EntryLoggedEvent is the payload published after an entry is stored.
type EntryLoggedEvent struct {
	Type      string                 `json:"type"`
	ProjectID string                 `json:"project_id"`
	Entry     tracking.ProgressEntry `json:"entry"`
}

// Attributes returns the message attributes used for subscriber filtering.
func (e EntryLoggedEvent) Attributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"project_id": e.ProjectID,
		"stage_id":   e.Entry.StageID,
	}
}

// Validate reports whether the event carries enough data to be delivered.
func (e EntryLoggedEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: event type is required", tracking.ErrInvalidRecord)
	}
	if e.ProjectID == "" {
		return fmt.Errorf("%w: event project id is required", tracking.ErrInvalidRecord)
	}
	return e.Entry.Validate()
}

// Emitter accepts entry notifications for asynchronous delivery. Emit must
// not block.
type Emitter interface {
	Emit(evt EntryLoggedEvent)
}

// Recorder validates and persists progress entries.
type Recorder struct {
	reader  tracking.Reader
	writer  tracking.EntryWriter
	emitter Emitter
	ids     tracking.IDGenerator
	clock   tracking.Clock
	logger  *zap.Logger
}

// NewRecorder constructs a Recorder. emitter may be nil to skip notifications.
func NewRecorder(
	reader tracking.Reader,
	writer tracking.EntryWriter,
	emitter Emitter,
	ids tracking.IDGenerator,
	clock tracking.Clock,
	logger *zap.Logger,
) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		reader:  reader,
		writer:  writer,
		emitter: emitter,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}
}

// LogEntry validates the entry against the store, persists it and emits an
// EntryLoggedEvent. The entry must reference an existing assembly and a stage
// of the assembly's project. Delivery happens asynchronously; failures there
// are logged by the sinks and never reach the caller.
func (r *Recorder) LogEntry(ctx context.Context, in NewEntry) (tracking.ProgressEntry, error) {
	in.AssemblyID = strings.TrimSpace(in.AssemblyID)
	in.StageID = strings.TrimSpace(in.StageID)
	in.WorkerName = strings.TrimSpace(in.WorkerName)
	if in.WorkerName == "" {
		return tracking.ProgressEntry{}, fmt.Errorf("%w: worker name is required", tracking.ErrInvalidRecord)
	}
	if in.AssemblyID == "" {
		return tracking.ProgressEntry{}, fmt.Errorf("%w: assembly id is required", tracking.ErrInvalidRecord)
	}

	assembly, err := r.reader.GetAssembly(ctx, in.AssemblyID)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			return tracking.ProgressEntry{}, fmt.Errorf("%w: assembly %s does not exist", tracking.ErrInvalidRecord, in.AssemblyID)
		}
		return tracking.ProgressEntry{}, fmt.Errorf("get assembly: %w", err)
	}
	stages, err := r.reader.ListStages(ctx, tracking.StageQuery{ProjectID: assembly.ProjectID})
	if err != nil {
		return tracking.ProgressEntry{}, fmt.Errorf("list stages: %w", err)
	}
	if !containsStage(stages, in.StageID) {
		return tracking.ProgressEntry{}, fmt.Errorf(
			"%w: stage %s does not belong to project %s", tracking.ErrInvalidRecord, in.StageID, assembly.ProjectID)
	}

	id, err := r.ids.NewID()
	if err != nil {
		return tracking.ProgressEntry{}, fmt.Errorf("generate entry id: %w", err)
	}
	completedAt := r.clock.Now()
	if in.CompletedAt != nil {
		completedAt = in.CompletedAt.UTC()
	}
	entry := tracking.ProgressEntry{
		ID:                id,
		AssemblyID:        in.AssemblyID,
		StageID:           in.StageID,
		WorkerID:          strings.TrimSpace(in.WorkerID),
		WorkerName:        in.WorkerName,
		QuantityCompleted: in.QuantityCompleted,
		TimeSpent:         in.TimeSpent,
		CompletedAt:       completedAt,
	}
	if err := entry.Validate(); err != nil {
		return tracking.ProgressEntry{}, err
	}
	if err := r.writer.CreateEntry(ctx, entry); err != nil {
		return tracking.ProgressEntry{}, fmt.Errorf("create entry: %w", err)
	}
	metrics.ObserveEntryLogged(entry.StageID, entry.QuantityCompleted)
	r.logger.Info("progress entry logged",
		zap.String("entry_id", entry.ID),
		zap.String("assembly_id", entry.AssemblyID),
		zap.String("stage_id", entry.StageID),
		zap.String("worker", entry.WorkerName),
		zap.Int("quantity", entry.QuantityCompleted),
	)

	if r.emitter != nil {
		r.emitter.Emit(EntryLoggedEvent{
			Type:      EventEntryLogged,
			ProjectID: assembly.ProjectID,
			Entry:     entry,
		})
	}
	return entry, nil
}
