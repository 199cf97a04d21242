package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/hrdesk/pkg/document"
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/eventstream"
	"github.com/papercomputeco/hrdesk/pkg/eventstream/kafka"
	"github.com/papercomputeco/hrdesk/pkg/logger"
)

type stubWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
	deadline bool
}

func (s *stubWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, s.deadline = ctx.Deadline()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msgs...)
	return nil
}

func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w   *stubWriter
		pub *kafka.Publisher
		ev  *eventstream.DocumentEvent
	)

	BeforeEach(func() {
		w = &stubWriter{}
		pub = kafka.NewPublisherWithWriter(w, time.Second, logger.Nop())
		ev = eventstream.NewDocumentEvent(eventstream.EventTypeDocumentIndexed, "u-1", "hr_manager",
			&document.Document{ID: "doc-1", Stage: document.StageIndexed, ChunkCount: 2})
	})

	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("writes the event keyed by document ID", func() {
		Expect(pub.Publish(context.Background(), ev)).To(Succeed())
		Expect(w.messages).To(HaveLen(1))
		Expect(w.deadline).To(BeTrue())

		msg := w.messages[0]
		Expect(string(msg.Key)).To(Equal("doc-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeDocumentIndexed)}))

		var decoded eventstream.DocumentEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(ev.EventID))
		Expect(decoded.Document.ChunkCount).To(Equal(2))
	})

	It("rejects nil events", func() {
		Expect(pub.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("reports write failures as transient", func() {
		w.err = errors.New("broker unreachable")
		err := pub.Publish(context.Background(), ev)
		Expect(errors.Is(err, errdefs.ErrTransient)).To(BeTrue())
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})

	Context("against a broker", func() {
		It("publishes to the topic", func() {
			brokers := os.Getenv("HRDESK_TEST_KAFKA_BROKERS")
			if brokers == "" {
				Skip("HRDESK_TEST_KAFKA_BROKERS not set")
			}

			live, err := kafka.NewPublisher(kafka.Config{
				Brokers: strings.Split(brokers, ","),
				Topic:   "hrdesk.documents.test",
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer live.Close()

			Expect(live.Publish(context.Background(), ev)).To(Succeed())
		})
	})
})
