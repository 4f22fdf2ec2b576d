package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/apperr"
	"github.com/vinitamart/storefront/internal/domain/identity"
)

// ErrNotFound is returned by a Repository when an order id does not resolve.
var ErrNotFound = errors.New("order not found")

// ErrStaleStatus is returned by Repository.UpdateStatus when the stored status
// no longer matches the expected one.
var ErrStaleStatus = errors.New("order status changed concurrently")

// ErrDuplicateKey is returned by Repository.Create when the owner already has
// an order under the same idempotency key.
var ErrDuplicateKey = errors.New("duplicate idempotency key")

// PaymentType is the settlement method chosen at placement.
type PaymentType string

const (
	PaymentCOD    PaymentType = "COD"
	PaymentOnline PaymentType = "Online"
)

// Item is a persisted line item. Name is snapshotted at placement so listings
// can be searched without consulting the catalog.
type Item struct {
	ProductID string `json:"product"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Order is a placed customer order. Amount is fixed at placement in minor
// currency units and never recomputed.
type Order struct {
	ID                string
	OwnerID           string
	Items             []Item
	AddressID         string
	CustomerName      string
	CustomerEmail     string
	Amount            int64
	PaymentType       PaymentType
	IsPaid            bool
	PaidAt            *time.Time
	Status            Status
	CheckoutSessionID string
	CheckoutURL       string
	IdempotencyKey    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Owner returns the tagged owner identity.
func (o *Order) Owner() identity.Owner {
	return identity.Parse(o.OwnerID)
}

// Visible reports whether the order shows up in customer and seller
// listings. Online orders stay hidden until paid.
func (o *Order) Visible() bool {
	return o.PaymentType == PaymentCOD || o.IsPaid
}

// Validate checks that every field required for persistence is present.
func (o *Order) Validate() error {
	switch {
	case o.ID == "":
		return apperr.Validation("Order id is required")
	case o.OwnerID == "":
		return apperr.Validation("Order owner is required")
	case len(o.Items) == 0:
		return apperr.Validation("Order items are required")
	case o.AddressID == "":
		return apperr.Validation("Address is required")
	case o.Amount <= 0:
		return apperr.Validation("Order amount must be positive")
	case o.PaymentType != PaymentCOD && o.PaymentType != PaymentOnline:
		return apperr.Validation("Invalid payment type")
	case !o.Status.Valid():
		return apperr.Validation("Invalid order status")
	}
	for _, it := range o.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return apperr.Validation("Invalid order item")
		}
	}
	return nil
}

// Filter selects orders for a listing. The visibility rule is always applied
// by the Repository; the remaining fields are optional.
type Filter struct {
	OwnerID  string
	Status   Status
	Search   string
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps pagination to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize < 1:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset returns the number of rows to skip for the filter page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Page is one page of a listing, newest first.
type Page struct {
	Orders   []Order
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

// NewPage computes the page count for a result set.
func NewPage(orders []Order, total int64, f Filter) *Page {
	pages := 0
	if f.PageSize > 0 {
		pages = int((total + int64(f.PageSize) - 1) / int64(f.PageSize))
	}
	return &Page{
		Orders:   orders,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		Pages:    pages,
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// FindByIdempotencyKey returns ErrNotFound when no order of the owner
	// carries the key.
	FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*Order, error)
	// UpdateStatus moves the order from one status to another, failing with
	// ErrStaleStatus when the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Order, error)
	// SetPaid sets the paid flag. paidAt is kept when already set and the
	// order is being marked paid; it is cleared when marking unpaid. changed
	// reports whether the flag flipped.
	SetPaid(ctx context.Context, id string, isPaid bool, at time.Time) (o *Order, changed bool, err error)
	List(ctx context.Context, f Filter) (*Page, error)
	Delete(ctx context.Context, id string) error
}
