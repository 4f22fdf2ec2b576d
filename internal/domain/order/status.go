package order

import "fmt"

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPlaced     Status = "Order Placed"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists every status in fulfilment order.
var Statuses = []Status{StatusPlaced, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func (s Status) rank() int {
	switch s {
	case StatusPlaced:
		return 0
	case StatusProcessing:
		return 1
	case StatusShipped:
		return 2
	case StatusDelivered:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusCancelled || s.rank() >= 0
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPlaced || s == StatusProcessing
}

// TransitionError reports a status change that would move an order backwards
// or out of a terminal state.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot change order status from %s to %s", e.From, e.To)
}

// CheckTransition validates a seller status change. Moving to the same status
// is allowed and treated as a no-op by callers.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return &InvalidStatusError{Status: string(to)}
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return &TransitionError{From: from, To: to}
	}
	if to == StatusCancelled {
		if !from.Cancellable() {
			return &TransitionError{From: from, To: to}
		}
		return nil
	}
	if to.rank() < from.rank() {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
