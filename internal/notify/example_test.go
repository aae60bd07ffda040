package notify_test

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/fabtrack/internal/notify"
	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

type quantitySink struct {
	total int
}

func (s *quantitySink) Consume(_ context.Context, batch []progress.EntryLoggedEvent) error {
	for _, evt := range batch {
		s.total += evt.Entry.QuantityCompleted
	}
	return nil
}

func (s *quantitySink) Close(context.Context) error { return nil }

// ExampleHub_Emit emits one notification and flushes it via Close.
func ExampleHub_Emit() {
	sink := &quantitySink{}
	hub := notify.NewHub(notify.Config{MaxBatchEvents: 1}, sink)

	hub.Emit(progress.EntryLoggedEvent{
		Type:      progress.EventEntryLogged,
		ProjectID: "p1",
		Entry: tracking.ProgressEntry{
			ID:                "e1",
			AssemblyID:        "a1",
			StageID:           "s1",
			WorkerName:        "Ali",
			QuantityCompleted: 5,
			TimeSpent:         50,
			CompletedAt:       time.Unix(0, 0).UTC(),
		},
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("units delivered: %d\n", sink.total)
	// Output:
	// units delivered: 5
}
