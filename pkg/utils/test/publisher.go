package testutils

import (
	"context"
	"sync"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
)

// MockPublisher records every usage event it is given.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.UsageEvent

	// Fail makes PublishUsage return this error.
	Fail error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishUsage(_ context.Context, event *eventstream.UsageEvent) error {
	if event == nil {
		return eventstream.ErrNilUsageEvent
	}
	if m.Fail != nil {
		return m.Fail
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (m *MockPublisher) Events() []*eventstream.UsageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*eventstream.UsageEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockPublisher) Close() error {
	return nil
}
