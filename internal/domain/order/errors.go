package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vinitamart/storefront/internal/domain/apperr"
)

// Sentinel errors for order placement and lifecycle operations.
var (
	ErrInvalidOrder     = apperr.Validation("Invalid order details")
	ErrAddressNotFound  = apperr.NotFound("Address not found")
	ErrOrderNotFound    = apperr.NotFound("Order not found")
	ErrLoginRequired    = apperr.Unauthorized("Login required for online payment")
	ErrNotOwner         = apperr.Forbidden("You are not allowed to modify this order")
	ErrNotOnlineOrder   = apperr.Validation("Order was not paid online")
	ErrConcurrentUpdate = apperr.Conflict("Order was modified concurrently, please retry")
	ErrAmountTooLarge   = apperr.Validation("Order total is too large")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Kind() apperr.Kind { return apperr.KindNotFound }

// InvalidLineItemError indicates a line item without a product or with a
// non-positive quantity.
type InvalidLineItemError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidLineItemError) Error() string {
	if e.ProductID == "" {
		return "Line item is missing a product"
	}
	return fmt.Sprintf("Quantity must be at least 1 for product %s", e.ProductID)
}

func (e *InvalidLineItemError) Kind() apperr.Kind { return apperr.KindValidation }

// InvalidPriceError indicates a catalog price that is not a non-negative
// whole number of minor units.
type InvalidPriceError struct {
	ProductID string
	Price     decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("Product %s has an invalid price", e.ProductID)
}

func (e *InvalidPriceError) Kind() apperr.Kind { return apperr.KindValidation }

// InvalidStatusError indicates a status value outside the known set.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("Invalid status %q", e.Status)
}

func (e *InvalidStatusError) Kind() apperr.Kind { return apperr.KindValidation }

func (e *TransitionError) Kind() apperr.Kind { return apperr.KindConflict }

// NotCancellableError indicates a cancel attempt after shipment or on an
// already terminal order.
type NotCancellableError struct {
	Status Status
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("Order cannot be cancelled, current status: %s", e.Status)
}

func (e *NotCancellableError) Kind() apperr.Kind { return apperr.KindConflict }
