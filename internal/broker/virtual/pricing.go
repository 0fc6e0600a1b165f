package virtual

import "github.com/shopspring/decimal"

// PriceSource quotes a fill price for a symbol. The simulator consults it
// only when the signal itself carries no price.
type PriceSource interface {
	Price(symbol string) decimal.Decimal
}

// StaticPrices is the production price source: a fixed reference table
// with a deterministic fallback for unlisted symbols, so replaying the
// same signals always produces the same fills.
type StaticPrices struct {
	table    map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewStaticPrices builds the reference table for the common Indian index
// and large-cap symbols.
func NewStaticPrices() *StaticPrices {
	return &StaticPrices{
		table: map[string]decimal.Decimal{
			"NIFTY":     decimal.NewFromInt(19850),
			"BANKNIFTY": decimal.NewFromInt(45200),
			"RELIANCE":  decimal.NewFromInt(2450),
			"TCS":       decimal.NewFromInt(3850),
			"INFY":      decimal.NewFromInt(1650),
			"HDFCBANK":  decimal.NewFromInt(1580),
		},
		fallback: decimal.NewFromInt(100),
	}
}

// Price returns the reference price, or the fallback for unknown symbols.
func (s *StaticPrices) Price(symbol string) decimal.Decimal {
	if p, ok := s.table[symbol]; ok {
		return p
	}
	return s.fallback
}
