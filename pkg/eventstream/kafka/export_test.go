package kafka

import (
	"log/slog"
	"time"
)

// MessageWriter exposes the writer seam to the external test package.
type MessageWriter = messageWriter

// NewPublisherWithWriter builds a publisher around a stub writer.
func NewPublisherWithWriter(w MessageWriter, timeout time.Duration, logger *slog.Logger) *Publisher {
	return newPublisher(w, timeout, logger)
}
