// Package kafka publishes scheduled observations to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/rotse-sim/internal/config"
	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// Writer produces observation messages to a Kafka topic.
// It implements pipeline.ObservationLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured observation topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes a batch of observations in a single
// WriteMessages call. Messages are keyed by star so one star's rows stay
// ordered within a partition.
func (w *Writer) LoadBatch(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(obs))
	for i := range obs {
		msg, err := serializeToMessage(obs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish observations: %w", err)
	}
	w.logger.Debug("observations published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Observation into a Kafka message.
func serializeToMessage(o domain.Observation) (kafkago.Message, error) {
	data, err := domain.MarshalObservation(o)
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   []byte(o.Star),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(o.RunID)},
			{Key: "processed_at", Value: []byte(o.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
