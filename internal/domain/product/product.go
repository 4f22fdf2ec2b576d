package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Prices are stored
// in minor currency units.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	OfferPrice  decimal.Decimal
	Images      []string
	InStock     bool
}

// Catalog defines the product catalog operations consumed by the storefront.
// FindByIDs must resolve every id in a single round trip; ids that do not
// exist are simply absent from the result.
type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]Product, error)
	SetInStock(ctx context.Context, id string, inStock bool) (*Product, error)
}
