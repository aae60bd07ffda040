package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/fabtrack/internal/progress"
	"github.com/JakeFAU/fabtrack/internal/tracking"
)

// PublisherSink forwards each notification to a topic. Every event in the
// batch is attempted; failures are joined into the returned error.
type PublisherSink struct {
	publisher tracking.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisherSink constructs a PublisherSink for topic.
func NewPublisherSink(publisher tracking.Publisher, topic string, logger *zap.Logger) (*PublisherSink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}, nil
}

// Consume publishes the batch in order.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.EntryLoggedEvent) error {
	var errs []error
	for _, evt := range batch {
		id, err := s.publisher.Publish(ctx, s.topic, evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish entry %s: %w", evt.Entry.ID, err))
			continue
		}
		s.logger.Debug("entry notification published",
			zap.String("entry_id", evt.Entry.ID),
			zap.String("message_id", id),
		)
	}
	return errors.Join(errs...)
}

// Close implements notify.Sink; the publisher is owned by the caller.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
