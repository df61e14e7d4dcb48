package repository

import (
	"context"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	pkgkafka "github.com/virtexvirtuoso/Virtuoso-sub004/pkg/kafka"
)

// KafkaResultPublisher implements ResultPublisher on Kafka. Messages are
// keyed by symbol so all results for one symbol land on one partition
// in evaluation order.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaResultPublisher creates a Kafka result publisher.
func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) repository.ResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
