// Package eventstreamutils builds the configured event publisher.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/hrdesk/pkg/eventstream"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/kafka"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType is "kafka", or "" / "none" to disable publishing.
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *slog.Logger
}

// NewPublisher returns the publisher for opts.ProviderType.
func NewPublisher(opts *NewPublisherOpts) (eventstream.Publisher, error) {
	switch opts.ProviderType {
	case "", "none", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{Brokers: opts.Brokers, Topic: opts.Topic}, opts.Logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", opts.ProviderType)
	}
}
