package repository

import (
	"context"

	"SignalDeck/internal/domain/models"
	pkgkafka "SignalDeck/pkg/kafka"
)

// KafkaRegistrar forwards accepted, triggered records once to the curated
// signal topic for cross-source aggregation. At-most-once: a failed publish
// is reported to the caller for logging but never retried here.
type KafkaRegistrar struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRegistrar creates a registrar publishing to topic.
func NewKafkaRegistrar(producer *pkgkafka.Producer, topic string) *KafkaRegistrar {
	return &KafkaRegistrar{producer: producer, topic: topic}
}

func (r *KafkaRegistrar) Register(ctx context.Context, rec *models.SignalRecord) error {
	// Keyed by instrument so all sources for one instrument land in order.
	return r.producer.Publish(ctx, r.topic, []byte(rec.Instrument), rec)
}

func (r *KafkaRegistrar) Close() error {
	if r.producer != nil {
		return r.producer.Close()
	}
	return nil
}
