package notify

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/mail"
)

// Sender sends a rendered email.
type Sender interface {
	Send(ctx context.Context, m mail.Message) error
}

// LogSender logs messages instead of sending them. It stands in for the
// SMTP client when no relay is configured.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg}
}

// Send logs the recipient and subject.
func (s *LogSender) Send(_ context.Context, m mail.Message) error {
	s.lg.Info("Email skipped, no SMTP relay configured",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
	)
	return nil
}

// MailSink renders and sends messages directly.
type MailSink struct {
	renderer *Renderer
	sender   Sender
}

var _ Sink = (*MailSink)(nil)

// NewMailSink creates a MailSink.
func NewMailSink(r *Renderer, s Sender) *MailSink {
	return &MailSink{renderer: r, sender: s}
}

// Deliver renders the message and sends it.
func (s *MailSink) Deliver(ctx context.Context, m Message) error {
	msg, err := s.renderer.Render(m)
	if err != nil {
		return errors.Wrap(err, "render")
	}
	return s.sender.Send(ctx, msg)
}

// Publisher writes an encoded message to a broker. The key groups messages
// of one order.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// BrokerSink hands messages to a broker for cmd/notify-worker.
type BrokerSink struct {
	pub Publisher
}

var _ Sink = (*BrokerSink)(nil)

// NewBrokerSink creates a BrokerSink.
func NewBrokerSink(pub Publisher) *BrokerSink {
	return &BrokerSink{pub: pub}
}

// Deliver encodes and publishes the message.
func (s *BrokerSink) Deliver(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, m.OrderID, Encode(m)); err != nil {
		return errors.Wrap(err, "publish")
	}
	return nil
}

// Source yields encoded messages from a broker. handle is called once per
// message; the source acknowledges it when handle returns.
type Source interface {
	Consume(ctx context.Context, handle func(ctx context.Context, body []byte) error) error
}

// Drain decodes messages from src and delivers them to sink until ctx is
// done. Undecodable messages are reported to handle's caller and skipped.
func Drain(ctx context.Context, src Source, sink Sink) error {
	return src.Consume(ctx, func(ctx context.Context, body []byte) error {
		m, err := Decode(body)
		if err != nil {
			return err
		}
		return sink.Deliver(ctx, m)
	})
}
