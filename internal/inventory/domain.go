package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Item is a stocked article owned by one company.
type Item struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	SupplierID  int64           `json:"supplier_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Line asks the reconciler to move Quantity units of ItemID.
type Line struct {
	ItemID   int64
	Quantity int64
}

// Reason classifies a stock movement.
type Reason string

const (
	// ReasonConsume is an invoice line taking stock.
	ReasonConsume Reason = "consume"
	// ReasonRestore undoes an earlier consume.
	ReasonRestore Reason = "restore"
	// ReasonReceive is stock arriving from a purchase order.
	ReasonReceive Reason = "receive"
)

// Reference ties movements to the document that caused them.
type Reference struct {
	CompanyID int64
	Module    string
	ID        int64
	Code      string
	ActorID   int64
}

// Movement is one row of the stock ledger.
type Movement struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	ItemID    int64     `json:"item_id"`
	Reason    Reason    `json:"reason"`
	Requested int64     `json:"requested"`
	Applied   int64     `json:"applied"`
	Balance   int64     `json:"balance"`
	Clamped   bool      `json:"clamped"`
	RefModule string    `json:"ref_module"`
	RefID     int64     `json:"ref_id"`
	RefCode   string    `json:"ref_code"`
	ActorID   int64     `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
}

// Adjustment reports the effect of reconciliation on one item.
type Adjustment struct {
	ItemID  int64
	Name    string
	Before  int64
	After   int64
	Clamped bool
}

// CreateItemInput describes a new inventory item.
type CreateItemInput struct {
	CompanyID   int64           `validate:"required,gt=0"`
	Name        string          `validate:"required,max=200"`
	Description string          `validate:"max=2000"`
	Quantity    int64           `validate:"gte=0"`
	UnitPrice   decimal.Decimal `validate:"-"`
	Discount    decimal.Decimal `validate:"-"`
	SupplierID  int64           `validate:"gte=0"`
}

// ListFilter narrows item listings.
type ListFilter struct {
	CompanyID int64
	Search    string
	Limit     int
	Offset    int
}

var (
	// ErrItemNotFound indicates the item does not exist for the company.
	ErrItemNotFound = fmt.Errorf("inventory: item not found: %w", shared.ErrNotFound)
	// ErrInsufficientStock is wrapped by InsufficientStockError.
	ErrInsufficientStock = fmt.Errorf("inventory: insufficient stock: %w", shared.ErrConflict)
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	// ErrInvalidItem indicates rejected item attributes.
	ErrInvalidItem = fmt.Errorf("inventory: invalid item: %w", shared.ErrValidation)
)

// InsufficientStockError names the item that blocked a strict apply.
type InsufficientStockError struct {
	ItemID    int64
	Name      string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for: %s (available %d, requested %d)", e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
