// Package pricing computes line nets, subtotals and taxed totals. Every
// function is pure: company configuration is passed in explicitly.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// CentPlaces is the number of decimal places kept on monetary totals.
const CentPlaces = 2

var (
	hundred = decimal.NewFromInt(100)

	// ErrInvalidLine reports a line that cannot be priced.
	ErrInvalidLine = fmt.Errorf("pricing: invalid line: %w", shared.ErrValidation)
	// ErrInvalidRate reports a negative tax rate.
	ErrInvalidRate = fmt.Errorf("pricing: tax rate must be >= 0: %w", shared.ErrValidation)
)

// Line is the priced view of a document or purchase order row.
type Line struct {
	Quantity  int64
	UnitPrice decimal.Decimal
	// Discount is a percentage in [0, 100].
	Discount decimal.Decimal
}

// Validate checks the line invariants.
func (l Line) Validate() error {
	switch {
	case l.Quantity < 1:
		return fmt.Errorf("%w: quantity must be >= 1", ErrInvalidLine)
	case l.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit price must be >= 0", ErrInvalidLine)
	case l.Discount.IsNegative() || l.Discount.GreaterThan(hundred):
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidLine)
	}
	return nil
}

// Gross returns quantity x unit price.
func (l Line) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Net returns the gross amount less the discount, unrounded.
func (l Line) Net() decimal.Decimal {
	gross := l.Gross()
	return gross.Sub(gross.Mul(l.Discount).Div(hundred))
}

// Subtotal sums line nets and rounds once at the aggregate.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Net())
	}
	return RoundCents(sum)
}

// ApplyTax returns round(subtotal x (1 + rate/100), 2).
func ApplyTax(subtotal, ratePercent decimal.Decimal) decimal.Decimal {
	return RoundCents(subtotal.Mul(decimal.NewFromInt(1).Add(ratePercent.Div(hundred))))
}

// Total prices lines and applies the tax rate.
func Total(lines []Line, ratePercent decimal.Decimal) (subtotal, total decimal.Decimal, err error) {
	if ratePercent.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidRate
	}
	for i, line := range lines {
		if err := line.Validate(); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	subtotal = Subtotal(lines)
	return subtotal, ApplyTax(subtotal, ratePercent), nil
}

// RoundCents rounds half away from zero to two places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// ParseAmount parses a user supplied amount. Empty input yields zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, shared.ErrValidation)
	}
	return d, nil
}
