package notify

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink delivers a message: either by sending it or by handing it to a
// broker for a remote worker.
type Sink interface {
	Deliver(ctx context.Context, m Message) error
}

// DispatcherConfig sizes the in-process queue.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// Dispatcher is a bounded in-process queue drained by a worker pool.
// Enqueue never blocks: when the queue is full, or once Run has returned, the
// message is dropped.
type Dispatcher struct {
	queue   chan Message
	workers int
	sink    Sink
	lg      *zap.Logger

	mu      sync.RWMutex
	stopped bool

	sent    metric.Int64Counter
	dropped metric.Int64Counter
	failed  metric.Int64Counter
}

// NewDispatcher creates a Dispatcher delivering to sink.
func NewDispatcher(cfg DispatcherConfig, sink Sink, lg *zap.Logger, mp metric.MeterProvider) (*Dispatcher, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	d := &Dispatcher{
		queue:   make(chan Message, cfg.QueueSize),
		workers: cfg.Workers,
		sink:    sink,
		lg:      lg,
	}

	meter := mp.Meter("storefront/notify")
	var err error
	if d.sent, err = meter.Int64Counter("notifications.sent"); err != nil {
		return nil, errors.Wrap(err, "notifications.sent counter")
	}
	if d.dropped, err = meter.Int64Counter("notifications.dropped"); err != nil {
		return nil, errors.Wrap(err, "notifications.dropped counter")
	}
	if d.failed, err = meter.Int64Counter("notifications.failed"); err != nil {
		return nil, errors.Wrap(err, "notifications.failed counter")
	}
	return d, nil
}

// Enqueue schedules a message for delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, m Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(ctx, m, "Notification dispatcher stopped, dropping message")
		return false
	}
	select {
	case d.queue <- m:
		return true
	default:
		d.drop(ctx, m, "Notification queue full, dropping message")
		return false
	}
}

func (d *Dispatcher) drop(ctx context.Context, m Message, reason string) {
	d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(m.Kind))))
	zctx.From(ctx).Warn(reason,
		zap.String("kind", string(m.Kind)),
		zap.String("order_id", m.OrderID),
	)
}

// Len returns the number of queued messages.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Cap returns the queue capacity.
func (d *Dispatcher) Cap() int {
	return cap(d.queue)
}

// Run starts the workers and blocks until ctx is done. Messages still queued
// at shutdown are delivered before Run returns, and later Enqueue calls are
// refused. Run must be called at most once.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			for {
				select {
				case m := <-d.queue:
					d.deliver(gctx, m)
				case <-gctx.Done():
					d.drain()
					return nil
				}
			}
		})
	}
	err := g.Wait()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.drain()
	return err
}

func (d *Dispatcher) drain() {
	ctx := context.Background()
	for {
		select {
		case m := <-d.queue:
			d.deliver(ctx, m)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, m Message) {
	attrs := metric.WithAttributes(attribute.String("kind", string(m.Kind)))
	if err := d.sink.Deliver(ctx, m); err != nil {
		d.failed.Add(ctx, 1, attrs)
		d.lg.Error("Deliver notification",
			zap.String("kind", string(m.Kind)),
			zap.String("order_id", m.OrderID),
			zap.Error(err),
		)
		return
	}
	d.sent.Add(ctx, 1, attrs)
}
