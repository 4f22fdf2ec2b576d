package app

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/broker/amqp"
	"github.com/vinitamart/storefront/internal/broker/kafka"
	"github.com/vinitamart/storefront/internal/mail"
	"github.com/vinitamart/storefront/internal/notify"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newRenderer(cfg *Config) (*notify.Renderer, error) {
	r, err := notify.NewRenderer(notify.Branding{
		Brand:        cfg.Branding.Brand,
		LogoURL:      cfg.Branding.LogoURL,
		SupportEmail: cfg.Branding.SupportEmail,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create renderer")
	}
	return r, nil
}

// newSender returns the SMTP client, or a logging stand-in when no relay is
// configured.
func newSender(cfg *Config, lg *zap.Logger) (notify.Sender, error) {
	if cfg.SMTP.Host == "" {
		lg.Warn("SMTP host not set, emails will be logged only")
		return notify.NewLogSender(lg), nil
	}
	c, err := mail.New(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create smtp client")
	}
	return c, nil
}

// newSink builds the delivery end of the notification queue.
func newSink(cfg *Config, r *notify.Renderer, s notify.Sender) (notify.Sink, io.Closer, error) {
	switch cfg.Notify.Sink {
	case SinkAMQP:
		b, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect amqp")
		}
		return notify.NewBrokerSink(b), b, nil
	case SinkKafka:
		p := kafka.NewPublisher(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic)
		return notify.NewBrokerSink(p), p, nil
	default:
		return notify.NewMailSink(r, s), nopCloser{}, nil
	}
}

// newSource opens the broker stream consumed by the notify worker.
func newSource(cfg *Config) (notify.Source, io.Closer, error) {
	switch cfg.Notify.Sink {
	case SinkAMQP:
		b, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect amqp")
		}
		return b, b, nil
	case SinkKafka:
		c := kafka.NewConsumer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic, cfg.Kafka.GroupID)
		return c, c, nil
	default:
		return nil, nil, errors.Errorf("notify worker needs a broker sink, got %q", cfg.Notify.Sink)
	}
}

// RunWorker consumes notifications published by the API server, renders and
// mails them until ctx is done.
func RunWorker(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
	lg.Info("Starting notify worker", zap.String("sink", cfg.Notify.Sink))

	renderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	sender, err := newSender(cfg, lg)
	if err != nil {
		return err
	}
	src, closer, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			lg.Warn("Close notification source", zap.Error(err))
		}
	}()

	if err := notify.Drain(ctx, src, notify.NewMailSink(renderer, sender)); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "drain notifications")
	}
	lg.Info("Notify worker stopped")
	return nil
}
