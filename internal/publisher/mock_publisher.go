// Package publisher groups the tracking.Publisher implementations.
package publisher

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of tracking.Publisher for testing.
type MockPublisher struct {
	mock.Mock
}

// Publish is the mock implementation of the Publish method.
func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}
