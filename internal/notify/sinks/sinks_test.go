package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/publisher"
	"github.com/JakeFAU/fabtrack/internal/publisher/memory"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

func event(id, project, stage string, qty int, minutes float64) progress.EntryLoggedEvent {
	return progress.EntryLoggedEvent{
		Type:      progress.EventEntryLogged,
		ProjectID: project,
		Entry: tracking.ProgressEntry{
			ID:                id,
			AssemblyID:        "a1",
			StageID:           stage,
			WorkerName:        "Ali",
			QuantityCompleted: qty,
			TimeSpent:         minutes,
			CompletedAt:       time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestPrometheusSinkRecordsProjectCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), []progress.EntryLoggedEvent{
		event("e1", "p1", "s1", 5, 50),
		event("e2", "p1", "s2", 5, 30),
		event("e3", "p2", "s9", 1, 10),
	}))

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.entries.WithLabelValues("p1")), 1e-9)
	require.InDelta(t, 10.0, testutil.ToFloat64(sink.units.WithLabelValues("p1")), 1e-9)
	require.InDelta(t, 80.0, testutil.ToFloat64(sink.minutes.WithLabelValues("p1")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.stages.WithLabelValues("p2", "s9")), 1e-9)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err, "duplicate registration must fail")
}

func TestPublisherSinkForwardsEvents(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink, err := NewPublisherSink(pub, "entries", nil)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), []progress.EntryLoggedEvent{event("e1", "p1", "s1", 3, 20)}))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "entries", msgs[0].Topic)
	require.Equal(t, "p1", msgs[0].Attributes["project_id"])

	var decoded progress.EntryLoggedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, "e1", decoded.Entry.ID)
}

func TestPublisherSinkJoinsFailures(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	boom := errors.New("unavailable")
	pub.FailWith(boom)
	sink, err := NewPublisherSink(pub, "entries", nil)
	require.NoError(t, err)

	err = sink.Consume(context.Background(), []progress.EntryLoggedEvent{
		event("e1", "p1", "s1", 1, 1),
		event("e2", "p1", "s1", 1, 1),
	})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "e1")
	require.Contains(t, err.Error(), "e2")
}

func TestPublisherSinkContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	first := event("e1", "p1", "s1", 1, 1)
	second := event("e2", "p1", "s1", 2, 5)
	pub := &publisher.MockPublisher{}
	pub.On("Publish", mock.Anything, "entries", first).Return("", errors.New("deadline exceeded")).Once()
	pub.On("Publish", mock.Anything, "entries", second).Return("msg-2", nil).Once()

	sink, err := NewPublisherSink(pub, "entries", nil)
	require.NoError(t, err)

	err = sink.Consume(context.Background(), []progress.EntryLoggedEvent{first, second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "e1")
	require.NotContains(t, err.Error(), "e2")
	pub.AssertExpectations(t)
}

func TestNewPublisherSinkValidates(t *testing.T) {
	t.Parallel()

	_, err := NewPublisherSink(nil, "entries", nil)
	require.Error(t, err)
	_, err = NewPublisherSink(memory.New(), "", nil)
	require.Error(t, err)
}

func TestLogSinkWritesStructuredLines(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.EntryLoggedEvent{event("e1", "p1", "s1", 2, 15)}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("entry notification").All()
	require.Len(t, entries, 1)
	require.Equal(t, "e1", entries[0].ContextMap()["entry_id"])
	require.Equal(t, int64(2), entries[0].ContextMap()["quantity"])
}
