// Package kafkaingress is the Kafka-backed Ingress Adapter: for
// deployments where the chat platform's mentions are fanned out through a
// Kafka topic (e.g. a multi-region relay) instead of, or in addition to,
// the direct socket callback in socketingress.
package kafkaingress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/mentionflow/harness/internal/ingress"
	"github.com/mentionflow/harness/internal/ingress/admission"
	"github.com/mentionflow/harness/internal/trigger"
)

// message is the wire shape of a mention record on the configured topic.
type message struct {
	Kind    string          `json:"kind"`
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// Config configures a Consumer's connection to Kafka.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer satisfies the same Ingress Adapter contract as socketingress:
// enqueue before ack — "ack" here is committing the consumer's offset, the
// Kafka analogue of acknowledging the platform transport. The Trigger
// Channel is signalled inside ingress.Admit right after a successful
// enqueue, so the signal is sent before the offset is committed, not after.
type Consumer struct {
	reader  *kafka.Reader
	store   ingress.Enqueuer
	trigger *trigger.Chan
	limiter admission.Limiter
	logger  *slog.Logger
}

// New returns a Kafka-backed Ingress Adapter.
func New(cfg Config, store ingress.Enqueuer, tc *trigger.Chan, limiter admission.Limiter, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})

	return &Consumer{reader: reader, store: store, trigger: tc, limiter: limiter, logger: logger}
}

// Run implements ingress.Adapter. It blocks, consuming messages until ctx
// is cancelled, at which point it closes the reader and returns.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() { _ = c.reader.Close() }()

	for {
		kmsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}

		if c.admit(ctx, kmsg) {
			if err := c.reader.CommitMessages(ctx, kmsg); err != nil {
				c.logger.Error("commit failed, message will be redelivered", slog.Any("error", err))
			}
		}
	}
}

func (c *Consumer) admit(ctx context.Context, kmsg kafka.Message) bool {
	var msg message
	if err := json.Unmarshal(kmsg.Value, &msg); err != nil {
		c.logger.Error("malformed kafka mention record, skipping", slog.Any("error", err))

		// Unparseable records can never become admissible; committing here
		// avoids redelivering a message that will fail forever.
		return true
	}

	if c.limiter != nil && !c.limiter.Allow(msg.Source) {
		c.logger.Warn("mention rejected by admission limiter", slog.String("kind", msg.Kind))

		return false
	}

	ack, err := ingress.Admit(ctx, c.store, c.trigger, msg.Kind, msg.Payload)
	if err != nil {
		c.logger.Error("enqueue failed, declining commit for redelivery",
			slog.String("kind", msg.Kind), slog.Any("error", err))

		return false
	}

	return ack
}
