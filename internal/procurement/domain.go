// Package procurement manages supplier purchase orders and receives them into
// stock.
package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	Number      string          `json:"number"`
	SupplierID  int64           `json:"supplier_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       string          `json:"notes,omitempty"`
	Received    bool            `json:"received"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// POLine represents PO lines.
type POLine struct {
	ID              int64           `json:"id"`
	POID            int64           `json:"purchase_order_id"`
	InventoryItemID int64           `json:"inventory_item_id"`
	Code            string          `json:"code,omitempty"`
	Description     string          `json:"description"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

// LineInput is a submitted PO line.
type LineInput struct {
	InventoryItemID int64
	Code            string
	Quantity        int64
	UnitPrice       decimal.Decimal
}

// Input carries a PO create or update request.
type Input struct {
	SupplierID int64       `validate:"required,gt=0"`
	Notes      string      `validate:"max=2000"`
	Lines      []LineInput `validate:"-"`
}

// ListFilter narrows PO listings.
type ListFilter struct {
	CompanyID  int64
	SupplierID int64
	Received   *bool
	Limit      int
	Offset     int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("procurement: purchase order not found: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: %w", shared.ErrValidation)
	// ErrEmptyOrder is returned when no valid line remains.
	ErrEmptyOrder = fmt.Errorf("%w: At least one item is required", ErrValidation)
	// ErrAlreadyReceived is returned for changes to a received order.
	ErrAlreadyReceived = fmt.Errorf("procurement: purchase order already received: %w", shared.ErrConflict)
	// ErrDuplicateNumber is returned when an order number is taken.
	ErrDuplicateNumber = fmt.Errorf("procurement: duplicate order number: %w", shared.ErrConflict)
)
