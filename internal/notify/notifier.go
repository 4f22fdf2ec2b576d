package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/vinitamart/storefront/internal/domain/order"
)

// Queue accepts messages without blocking.
type Queue interface {
	Enqueue(ctx context.Context, m Message) bool
}

// OrderNotifier turns order events into customer and seller messages.
type OrderNotifier struct {
	queue       Queue
	sellerEmail string
}

var _ order.Notifier = (*OrderNotifier)(nil)

// NewOrderNotifier creates an OrderNotifier. Seller alerts are skipped when
// sellerEmail is empty.
func NewOrderNotifier(q Queue, sellerEmail string) *OrderNotifier {
	return &OrderNotifier{queue: q, sellerEmail: sellerEmail}
}

// OrderPlaced enqueues the customer confirmation and the seller alert.
func (n *OrderNotifier) OrderPlaced(ctx context.Context, o *order.Order) {
	base := fromOrder(o)
	if o.CustomerEmail != "" {
		m := base
		m.ID = uuid.NewString()
		m.Kind = KindConfirmation
		m.To = o.CustomerEmail
		n.queue.Enqueue(ctx, m)
	}
	if n.sellerEmail != "" {
		m := base
		m.ID = uuid.NewString()
		m.Kind = KindSellerAlert
		m.To = n.sellerEmail
		n.queue.Enqueue(ctx, m)
	}
}

// StatusChanged enqueues the status update for the customer.
func (n *OrderNotifier) StatusChanged(ctx context.Context, o *order.Order) {
	if o.CustomerEmail == "" {
		return
	}
	m := fromOrder(o)
	m.ID = uuid.NewString()
	m.Kind = KindStatusUpdate
	m.To = o.CustomerEmail
	n.queue.Enqueue(ctx, m)
}

func fromOrder(o *order.Order) Message {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	at := o.UpdatedAt
	if at.IsZero() {
		at = o.CreatedAt
	}
	return Message{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Amount:        o.Amount,
		PaymentType:   string(o.PaymentType),
		Status:        string(o.Status),
		ItemCount:     items,
		CreatedAt:     at,
	}
}
