// Package notify delivers order emails off the request path.
package notify

import (
	"time"

	"github.com/go-faster/errors"
)

// Kind selects the template of a message.
type Kind string

const (
	KindConfirmation Kind = "order_confirmation"
	KindStatusUpdate Kind = "status_update"
	KindSellerAlert  Kind = "seller_alert"
)

// Message is one outbound email, carried through the queue and the broker
// before rendering.
type Message struct {
	ID            string
	Kind          Kind
	To            string
	OrderID       string
	CustomerName  string
	CustomerEmail string
	Amount        int64
	PaymentType   string
	Status        string
	ItemCount     int
	CreatedAt     time.Time
}

// Validate checks the fields every template needs.
func (m Message) Validate() error {
	switch m.Kind {
	case KindConfirmation, KindStatusUpdate, KindSellerAlert:
	default:
		return errors.Errorf("unknown message kind %q", m.Kind)
	}
	if m.To == "" {
		return errors.New("message has no recipient")
	}
	if m.OrderID == "" {
		return errors.New("message has no order id")
	}
	return nil
}
