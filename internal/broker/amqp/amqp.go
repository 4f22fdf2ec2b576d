// Package amqp carries notification messages over RabbitMQ.
package amqp

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/notify"
)

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Broker publishes to and consumes from one durable queue.
type Broker struct {
	conn  *amqp.Connection
	mu    sync.Mutex
	ch    Channel
	queue string
}

var (
	_ notify.Publisher = (*Broker)(nil)
	_ notify.Source    = (*Broker)(nil)
)

// Dial connects to the broker and declares the queue.
func Dial(url, queue string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	b, err := New(ch, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	b.conn = conn
	return b, nil
}

// New wraps an open channel and declares the queue.
func New(ch Channel, queue string) (*Broker, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}
	return &Broker{ch: ch, queue: queue}, nil
}

// Publish sends a persistent message to the queue.
func (b *Broker) Publish(ctx context.Context, key string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.ch.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: key,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		return errors.Wrap(err, "amqp publish")
	}
	return nil
}

// Consume delivers messages to handle until ctx is done. A message is acked
// when handle succeeds and rejected without requeue otherwise.
func (b *Broker) Consume(ctx context.Context, handle func(context.Context, []byte) error) error {
	lg := zctx.From(ctx)
	if err := b.ch.Qos(1, 0, false); err != nil {
		return errors.Wrap(err, "set qos")
	}
	deliveries, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			if err := handle(ctx, d.Body); err != nil {
				lg.Error("Handle message", zap.String("correlation_id", d.CorrelationId), zap.Error(err))
				if err := d.Nack(false, false); err != nil {
					lg.Warn("Nack message", zap.Error(err))
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				lg.Warn("Ack message", zap.Error(err))
			}
		}
	}
}

// Close closes the channel and the connection.
func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		return errors.Wrap(err, "close channel")
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
