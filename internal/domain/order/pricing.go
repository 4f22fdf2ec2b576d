package order

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultSurchargeRate is the flat fee applied on top of the subtotal.
var DefaultSurchargeRate = decimal.RequireFromString("0.02")

// maxAmount is the largest amount a Quote can carry.
var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Line is a priced line item.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Quote is the result of pricing a cart, in integer minor units.
type Quote struct {
	Subtotal  int64
	Surcharge int64
	Amount    int64
}

// Pricer computes order totals. It holds no mutable state and is safe for
// concurrent use.
type Pricer struct {
	rate decimal.Decimal
}

// NewPricer creates a Pricer applying the given surcharge rate, which must be
// in [0, 1).
func NewPricer(rate decimal.Decimal) (*Pricer, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Errorf("surcharge rate %s out of range [0, 1)", rate)
	}
	return &Pricer{rate: rate}, nil
}

// Price returns subtotal, surcharge and amount for the lines:
//
//	subtotal  = sum(quantity * unitPrice)
//	surcharge = floor(subtotal * rate)
//	amount    = subtotal + surcharge
//
// Unit prices must be non-negative whole minor units and the amount must fit
// in an int64.
func (p *Pricer) Price(lines []Line) (Quote, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Quote{}, &InvalidLineItemError{ProductID: l.ProductID, Quantity: l.Quantity}
		}
		if l.UnitPrice.IsNegative() || !l.UnitPrice.Equal(l.UnitPrice.Truncate(0)) {
			return Quote{}, &InvalidPriceError{ProductID: l.ProductID, Price: l.UnitPrice}
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	surcharge := subtotal.Mul(p.rate).Floor()
	if subtotal.Add(surcharge).GreaterThan(maxAmount) {
		return Quote{}, ErrAmountTooLarge
	}

	return Quote{
		Subtotal:  subtotal.IntPart(),
		Surcharge: surcharge.IntPart(),
		Amount:    subtotal.Add(surcharge).IntPart(),
	}, nil
}
