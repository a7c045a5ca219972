package eventstream

import "context"

// Publisher publishes usage events to an event stream backend.
type Publisher interface {
	PublishUsage(ctx context.Context, event *UsageEvent) error
	Close() error
}
