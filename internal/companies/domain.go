// Package companies holds the per-tenant configuration consumed by pricing:
// tax rate and currency symbol.
package companies

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Company is the tenant boundary.
type Company struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	CurrencySymbol string          `json:"currency_symbol"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SettingsInput updates the pricing configuration of a company.
type SettingsInput struct {
	CurrencySymbol string          `validate:"required,max=8"`
	TaxRate        decimal.Decimal `validate:"-"`
}

var (
	// ErrNotFound indicates the company does not exist.
	ErrNotFound = fmt.Errorf("companies: company not found: %w", shared.ErrNotFound)
	// ErrInvalidSettings indicates rejected settings.
	ErrInvalidSettings = fmt.Errorf("companies: invalid settings: %w", shared.ErrValidation)
)
