package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"evently/internal/notify"
	"evently/internal/store"
)

// ConsumerConfig mirrors the teacher's ConsumerConfig, trimmed to the
// knobs a single-channel (email-only) consumer group actually uses.
type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	OffsetOldest      bool
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		GroupID:           "evently-mail-workers",
		Topics:            []string{"booking-notifications"},
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		OffsetOldest:      false,
	}
}

// Consumer reads notify.Intent messages from Kafka and delivers each as
// an email, resolving the recipient against the store.
type Consumer struct {
	group  sarama.ConsumerGroup
	cfg    ConsumerConfig
	mailer *Mailer
	store  store.Store
	log    *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, mailer *Mailer, st store.Store, log *slog.Logger) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Session.Timeout = cfg.SessionTimeout
	sc.Consumer.Group.Heartbeat.Interval = cfg.HeartbeatInterval
	sc.Consumer.Return.Errors = true
	if cfg.OffsetOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("mail: create consumer group: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{group: group, cfg: cfg, mailer: mailer, store: st, log: log}, nil
}

// Run blocks, rejoining the consumer group's session loop until ctx is
// cancelled — same re-arm-on-rebalance shape as the teacher's
// StartConsumers loop, collapsed to a single worker since mail delivery
// here is not sharded by channel.
func (c *Consumer) Run(ctx context.Context) error {
	handler := &groupHandler{c: c}
	for {
		if err := c.group.Consume(ctx, c.cfg.Topics, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.ErrorContext(ctx, "consumer group session error", slog.String("error", err.Error()))
			time.Sleep(time.Second)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error { return c.group.Close() }

type groupHandler struct {
	c *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg := <-claim.Messages():
			if msg == nil {
				return nil
			}
			if err := h.c.process(session.Context(), msg.Value); err != nil {
				h.c.log.ErrorContext(session.Context(), "failed to process notification",
					slog.String("error", err.Error()))
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, payload []byte) error {
	var intent notify.Intent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return fmt.Errorf("unmarshal intent: %w", err)
	}

	email, err := c.render(ctx, intent)
	if err != nil {
		return err
	}
	if email == nil {
		return nil
	}
	return c.mailer.Send(ctx, email.to, email.subject, email.html, email.text)
}
