package valueobjects

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseUnitDecimals is the number of fractional digits of the settlement asset.
const BaseUnitDecimals = 18

// Price is a positive decimal amount of the default settlement asset.
type Price struct {
	value decimal.Decimal
}

// NewPrice parses a decimal string such as "12.5"
func NewPrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Price{}, errors.New("price is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q", s)
	}
	return newPrice(d)
}

// NewPriceFromDecimal wraps a decimal value
func NewPriceFromDecimal(d decimal.Decimal) (Price, error) {
	return newPrice(d)
}

func newPrice(d decimal.Decimal) (Price, error) {
	if !d.IsPositive() {
		return Price{}, errors.New("price must be greater than zero")
	}
	if -d.Exponent() > BaseUnitDecimals && !d.Equal(d.Truncate(BaseUnitDecimals)) {
		return Price{}, fmt.Errorf("price has more than %d fractional digits", BaseUnitDecimals)
	}
	return Price{value: d}, nil
}

// Decimal returns the price as a decimal
func (p Price) Decimal() decimal.Decimal { return p.value }

// IsPositive reports whether the price is usable for a listing
func (p Price) IsPositive() bool { return p.value.IsPositive() }

// BaseUnits converts the price to the ledger's smallest unit.
func (p Price) BaseUnits() *big.Int {
	return p.value.Shift(BaseUnitDecimals).BigInt()
}

// String returns the canonical decimal form
func (p Price) String() string { return p.value.String() }

// Float64 returns the price as sent to the metadata service.
func (p Price) Float64() float64 {
	f, _ := p.value.Float64()
	return f
}

// MarshalText implements encoding.TextMarshaler
func (p Price) MarshalText() ([]byte, error) {
	return []byte(p.value.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Price) UnmarshalText(text []byte) error {
	parsed, err := NewPrice(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
