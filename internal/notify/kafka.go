package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// KafkaConfig mirrors the teacher's KafkaProducerConfig shape (idempotent
// writes, hash partitioning, snappy compression, bounded retries).
type KafkaConfig struct {
	Brokers         []string
	Topic           string
	DeadLetterTopic string
	RetryMax        int
	Timeout         time.Duration
}

func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:         []string{"localhost:9092"},
		Topic:           "booking-notifications",
		DeadLetterTopic: "booking-notifications-dlq",
		RetryMax:        3,
		Timeout:         10 * time.Second,
	}
}

// KafkaPublisher is the production Publisher, a thin adapter over
// sarama.SyncProducer. On a send failure it makes a best-effort attempt
// to route the intent to the dead-letter topic instead of failing the
// caller — notification delivery must never block a booking commit.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	cfg      KafkaConfig
	log      *slog.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, log *slog.Logger) (*KafkaPublisher, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Retry.Max = cfg.RetryMax
	sc.Producer.Timeout = cfg.Timeout
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("notify: create kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, cfg: cfg, log: log}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, intent Intent) error {
	payload, err := intent.toJSON()
	if err != nil {
		return fmt.Errorf("notify: marshal intent: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.cfg.Topic,
		Key:       sarama.StringEncoder(intent.partitionKey()),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: intent.CreatedAt,
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.log.WarnContext(ctx, "notification publish failed, routing to dead letter",
			slog.String("type", string(intent.Type)), slog.String("error", err.Error()))
		dlq := *msg
		dlq.Topic = p.cfg.DeadLetterTopic
		if _, _, dlqErr := p.producer.SendMessage(&dlq); dlqErr != nil {
			p.log.ErrorContext(ctx, "dead letter publish also failed",
				slog.String("type", string(intent.Type)), slog.String("error", dlqErr.Error()))
		}
		return nil
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
