// Package kafka carries notification messages over a Kafka topic.
package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/notify"
)

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes messages keyed by order id so one order's messages stay
// on one partition.
type Publisher struct {
	w MessageWriter
}

var _ notify.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for the topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// Publish writes one message.
func (p *Publisher) Publish(ctx context.Context, key string, body []byte) error {
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error { return p.w.Close() }

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the topic in a consumer group.
type Consumer struct {
	r       MessageReader
	backoff time.Duration
}

var _ notify.Source = (*Consumer)(nil)

// NewConsumer creates a Consumer for the topic and group.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		backoff: 2 * time.Second,
	}
}

// Consume hands every message to handle and commits it afterwards. Handler
// failures are logged and the message is committed so a poison message
// cannot stall the partition.
func (c *Consumer) Consume(ctx context.Context, handle func(context.Context, []byte) error) error {
	lg := zctx.From(ctx)
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			lg.Warn("Kafka fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		if err := handle(ctx, msg.Value); err != nil {
			lg.Error("Handle message",
				zap.String("key", string(msg.Key)),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			lg.Warn("Kafka commit", zap.Error(err))
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error { return c.r.Close() }
