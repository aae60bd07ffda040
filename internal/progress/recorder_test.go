package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fabtrack/internal/tracking"
)

type sequenceIDs struct {
	mu   sync.Mutex
	next int
	err  error
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.next++
	return fmt.Sprintf("entry-%d", s.next), nil
}

type captureEmitter struct {
	mu     sync.Mutex
	events []EntryLoggedEvent
}

func (c *captureEmitter) Emit(evt EntryLoggedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) Events() []EntryLoggedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EntryLoggedEvent(nil), c.events...)
}

type failingWriter struct{ err error }

func (f failingWriter) CreateEntry(context.Context, tracking.ProgressEntry) error { return f.err }

func TestRecorderLogEntry(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	emitter := &captureEmitter{}
	rec := NewRecorder(store, store, emitter, &sequenceIDs{}, fixedClock{testNow}, nil)
	ctx := context.Background()

	got, err := rec.LogEntry(ctx, NewEntry{
		AssemblyID:        " a1 ",
		StageID:           "s1",
		WorkerName:        "  Ayse ",
		QuantityCompleted: 3,
		TimeSpent:         25,
	})
	require.NoError(t, err)
	require.Equal(t, "entry-1", got.ID)
	require.Equal(t, "Ayse", got.WorkerName)
	require.Equal(t, testNow, got.CompletedAt, "defaults to the clock")

	events := emitter.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventEntryLogged, events[0].Type)
	require.Equal(t, "p1", events[0].ProjectID)
	require.NoError(t, events[0].Validate())

	pct, err := newTestService(t, store).StageProgress(ctx, "p1", "s1")
	require.NoError(t, err)
	require.InDelta(t, 70.0, pct, 1e-9, "new entry counts towards progress")

	explicit := time.Date(2024, 5, 2, 9, 0, 0, 0, time.FixedZone("TRT", 3*3600))
	got, err = rec.LogEntry(ctx, NewEntry{AssemblyID: "a1", StageID: "s1", WorkerName: "Ali", CompletedAt: &explicit})
	require.NoError(t, err)
	require.Equal(t, explicit.UTC(), got.CompletedAt)
}

func TestRecorderRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	emitter := &captureEmitter{}
	rec := NewRecorder(store, store, emitter, &sequenceIDs{}, fixedClock{testNow}, nil)

	tests := map[string]NewEntry{
		"missing worker":         {AssemblyID: "a1", StageID: "s1", QuantityCompleted: 1},
		"missing assembly":       {StageID: "s1", WorkerName: "Ali"},
		"unknown assembly":       {AssemblyID: "nope", StageID: "s1", WorkerName: "Ali"},
		"stage of other project": {AssemblyID: "a1", StageID: "s9", WorkerName: "Ali"},
		"missing stage":          {AssemblyID: "a1", WorkerName: "Ali"},
		"negative quantity":      {AssemblyID: "a1", StageID: "s1", WorkerName: "Ali", QuantityCompleted: -1},
		"negative time":          {AssemblyID: "a1", StageID: "s1", WorkerName: "Ali", TimeSpent: -5},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := rec.LogEntry(context.Background(), in)
			require.ErrorIs(t, err, tracking.ErrInvalidRecord)
		})
	}
	t.Cleanup(func() {
		if len(emitter.Events()) != 0 {
			t.Errorf("rejected entries must not emit notifications")
		}
	})
}

func TestRecorderPropagatesFailures(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	boom := errors.New("db down")
	ctx := context.Background()
	in := NewEntry{AssemblyID: "a1", StageID: "s1", WorkerName: "Ali", QuantityCompleted: 1}

	emitter := &captureEmitter{}
	rec := NewRecorder(store, failingWriter{err: boom}, emitter, &sequenceIDs{}, fixedClock{testNow}, nil)
	_, err := rec.LogEntry(ctx, in)
	require.ErrorIs(t, err, boom)
	require.Empty(t, emitter.Events())

	rec = NewRecorder(store, store, nil, &sequenceIDs{err: boom}, fixedClock{testNow}, nil)
	_, err = rec.LogEntry(ctx, in)
	require.ErrorIs(t, err, boom)

	rec = NewRecorder(failingReader{Reader: store, failOn: "stages", err: boom}, store, nil, &sequenceIDs{}, fixedClock{testNow}, nil)
	_, err = rec.LogEntry(ctx, in)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, tracking.ErrInvalidRecord)
}

func TestRecorderWithoutEmitter(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	rec := NewRecorder(store, store, nil, &sequenceIDs{}, fixedClock{testNow}, nil)
	_, err := rec.LogEntry(context.Background(), NewEntry{AssemblyID: "a2", StageID: "s2", WorkerName: "Veli"})
	require.NoError(t, err)
}
