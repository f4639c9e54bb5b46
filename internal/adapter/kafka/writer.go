package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/firewatch-analytics/internal/config"
	"github.com/couchcryptid/firewatch-analytics/internal/domain"
)

// Writer publishes newly ingested fire detections to a Kafka topic.
// It implements service.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and publishes detections to the sink topic in a single
// WriteMessages call.
func (w *Writer) Publish(ctx context.Context, records []domain.FireDetection) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a detection into a Kafka message. The key is
// the detection's deterministic ID, so a record republished on replay lands
// on the same partition with the same key.
func serializeToMessage(d domain.FireDetection) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize detection: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(d.ID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(d.Source)},
			{Key: "acquired_at", Value: []byte(d.AcquiredAt.Format(time.RFC3339))},
		},
	}, nil
}
