// Package payment holds the provider-independent parts of the checkout
// integration.
package payment

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PriceMode selects how catalog offer prices become provider unit amounts.
type PriceMode string

const (
	// ModeStorefront reproduces the storefront contract with the provider:
	// floor(offer * offer * SquareFactor) * MinorUnitScale.
	ModeStorefront PriceMode = "storefront"
	// ModeDirect sends offer * MinorUnitScale.
	ModeDirect PriceMode = "direct"
)

// UnitPriceConfig parameterizes the provider unit price transform,
// independently of the ledger amount.
type UnitPriceConfig struct {
	Mode           PriceMode
	SquareFactor   decimal.Decimal
	MinorUnitScale decimal.Decimal
}

// DefaultUnitPriceConfig returns the storefront transform.
func DefaultUnitPriceConfig() UnitPriceConfig {
	return UnitPriceConfig{
		Mode:           ModeStorefront,
		SquareFactor:   decimal.RequireFromString("0.02"),
		MinorUnitScale: decimal.NewFromInt(100),
	}
}

// UnitPricer converts offer prices to provider unit amounts.
type UnitPricer struct {
	cfg UnitPriceConfig
}

// NewUnitPricer validates the configuration and returns a UnitPricer.
func NewUnitPricer(cfg UnitPriceConfig) (*UnitPricer, error) {
	switch cfg.Mode {
	case ModeStorefront:
		if cfg.SquareFactor.IsNegative() {
			return nil, errors.Errorf("square factor %s is negative", cfg.SquareFactor)
		}
	case ModeDirect:
	default:
		return nil, errors.Errorf("unknown unit price mode %q", cfg.Mode)
	}
	if !cfg.MinorUnitScale.IsPositive() {
		return nil, errors.Errorf("minor unit scale %s must be positive", cfg.MinorUnitScale)
	}
	return &UnitPricer{cfg: cfg}, nil
}

// UnitAmount returns the provider unit amount for an offer price.
func (p *UnitPricer) UnitAmount(offer decimal.Decimal) int64 {
	if p.cfg.Mode == ModeDirect {
		return offer.Mul(p.cfg.MinorUnitScale).Floor().IntPart()
	}
	return offer.Mul(offer).Mul(p.cfg.SquareFactor).Floor().Mul(p.cfg.MinorUnitScale).IntPart()
}
