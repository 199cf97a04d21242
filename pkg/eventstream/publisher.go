package eventstream

import "context"

// Publisher publishes document events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *DocumentEvent) error
	Close() error
}
