// Package payments records payments against documents and keeps each
// document's paid status in line with what has been received.
package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Method is how a payment was made.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodCreditCard   Method = "credit_card"
	MethodCheque       Method = "cheque"
	MethodOther        Method = "other"
)

// ParseMethod validates raw as a payment method. Empty input means cash.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case "":
		return MethodCash, nil
	case MethodCash, MethodBankTransfer, MethodCreditCard, MethodCheque, MethodOther:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, raw)
}

// Payment is money received, optionally against one document.
type Payment struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	DocumentID  int64           `json:"document_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      Method          `json:"method"`
	Notes       string          `json:"notes,omitempty"`
	Reference   string          `json:"reference"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Input carries a payment create or update request.
type Input struct {
	DocumentID  int64
	Amount      decimal.Decimal `validate:"-"`
	PaymentDate time.Time
	Method      Method `validate:"required"`
	Notes       string `validate:"max=1000"`
}

// ListFilter narrows payment listings.
type ListFilter struct {
	CompanyID  int64
	DocumentID int64
	Limit      int
	Offset     int
}

var (
	// ErrNotFound is returned when the payment does not exist in the company.
	ErrNotFound = fmt.Errorf("payments: payment not found: %w", shared.ErrNotFound)
	// ErrDocumentNotFound is returned when the referenced document is missing.
	ErrDocumentNotFound = fmt.Errorf("payments: document not found: %w", shared.ErrNotFound)
	// ErrValidation wraps rejected input.
	ErrValidation = fmt.Errorf("payments: %w", shared.ErrValidation)
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
)
