// Package documents implements the invoice and quote lifecycle: numbering,
// pricing, stock reconciliation and conversion, each as one transaction.
package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Type is the document variant, frozen at creation except through update.
type Type string

const (
	TypeQuote   Type = "quote"
	TypeInvoice Type = "invoice"
)

// ParseType validates raw as a document type.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeQuote, TypeInvoice:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown document type %q", ErrValidation, raw)
}

// Prefix returns the code letter of the type.
func (t Type) Prefix() string {
	switch t {
	case TypeInvoice:
		return "I"
	case TypeQuote:
		return "Q"
	}
	return ""
}

// ConsumesStock reports whether lines of this type move inventory.
func (t Type) ConsumesStock() bool {
	switch t {
	case TypeInvoice:
		return true
	case TypeQuote:
		return false
	}
	return false
}

// FilePrefix is used when naming printed files.
func (t Type) FilePrefix() string {
	if t == TypeQuote {
		return "quo"
	}
	return "inv"
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusIssued    Status = "issued"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
	StatusConverted Status = "converted"
	StatusCredit    Status = "credit"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusSent, StatusIssued, StatusPartial, StatusPaid, StatusCancelled, StatusConverted},
	StatusSent:      {StatusDraft, StatusIssued, StatusPartial, StatusPaid, StatusOverdue, StatusCancelled, StatusConverted},
	StatusIssued:    {StatusSent, StatusPartial, StatusPaid, StatusOverdue, StatusCancelled},
	StatusPartial:   {StatusSent, StatusIssued, StatusPaid, StatusOverdue, StatusCancelled},
	StatusPaid:      {StatusSent, StatusPartial, StatusCredit, StatusCancelled},
	StatusOverdue:   {StatusSent, StatusPartial, StatusPaid, StatusCancelled},
	StatusCancelled: {StatusDraft},
	StatusConverted: nil,
	StatusCredit:    nil,
}

// ParseStatus validates raw as a status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return s, nil
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Staying in the same state is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether payments no longer drive the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusConverted, StatusCredit:
		return true
	case StatusDraft, StatusSent, StatusIssued, StatusPartial, StatusPaid, StatusOverdue:
		return false
	}
	return false
}

// initialStatuses lists the states a document may be created in.
var initialStatuses = map[Type][]Status{
	TypeQuote:   {StatusDraft, StatusSent},
	TypeInvoice: {StatusDraft, StatusSent, StatusIssued, StatusPaid},
}

func validInitial(t Type, s Status) bool {
	for _, allowed := range initialStatuses[t] {
		if allowed == s {
			return true
		}
	}
	return false
}

// Document is an invoice or a quote.
type Document struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	Code        string          `json:"code"`
	Type        Type            `json:"type"`
	ClientID    int64           `json:"client_id,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	Status      Status          `json:"status"`
	IssuedDate  time.Time       `json:"issued_date"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Item is one persisted line of a document.
type Item struct {
	ID              int64           `json:"id"`
	DocumentID      int64           `json:"document_id"`
	InventoryItemID int64           `json:"inventory_item_id,omitempty"`
	Description     string          `json:"description"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Discount        decimal.Decimal `json:"discount"`
}

// PricingLine returns the priced view of the item.
func (i Item) PricingLine() pricing.Line {
	return pricing.Line{Quantity: i.Quantity, UnitPrice: i.UnitPrice, Discount: i.Discount}
}

// LineSpec is a parsed, not yet persisted, line.
type LineSpec struct {
	InventoryItemID int64
	Description     string
	Quantity        int64           `validate:"gte=1"`
	UnitPrice       decimal.Decimal `validate:"-"`
	Discount        decimal.Decimal `validate:"-"`
}

func (l LineSpec) pricingLine() pricing.Line {
	return pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount}
}

func (l LineSpec) item(documentID int64) Item {
	return Item{
		DocumentID:      documentID,
		InventoryItemID: l.InventoryItemID,
		Description:     l.Description,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		Discount:        l.Discount,
	}
}

// Input carries the header and lines of a create or update request.
type Input struct {
	Code       string
	Type       Type
	ClientID   int64
	Status     Status
	IssuedDate time.Time
	DueDate    *time.Time
	Notes      string     `validate:"max=2000"`
	Lines      []LineSpec `validate:"dive"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	CompanyID int64
	Type      Type
	Status    Status
	Limit     int
	Offset    int
}

// Payment is the record synthesized when a document is created as paid.
type Payment struct {
	CompanyID  int64
	DocumentID int64
	Amount     decimal.Decimal
	Date       time.Time
	Method     string
	Notes      string
	Reference  string
	CreatedBy  int64
}

// Snapshot is a detached view of a document for printing.
type Snapshot struct {
	Document       Document
	Lines          []SnapshotLine
	CurrencySymbol string
	Breakdown      pricing.Breakdown
}

// Filename names the printed file, e.g. inv_I-7-000042.pdf.
func (s Snapshot) Filename() string {
	return fmt.Sprintf("%s_%s.pdf", s.Document.Type.FilePrefix(), s.Document.Code)
}

// SnapshotLine is an item with its resolved name and net amount.
type SnapshotLine struct {
	Code      string
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Net       decimal.Decimal
}

var (
	// ErrNotFound is returned when the document does not exist in the company.
	ErrNotFound = fmt.Errorf("documents: document not found: %w", shared.ErrNotFound)
	// ErrDuplicateCode is returned when the code is taken within (company, type).
	ErrDuplicateCode = fmt.Errorf("documents: duplicate document code: %w", shared.ErrConflict)
	// ErrValidation wraps rejected input.
	ErrValidation = fmt.Errorf("documents: %w", shared.ErrValidation)
	// ErrEmptyDocument is returned when no line survives parsing.
	ErrEmptyDocument = fmt.Errorf("%w: At least one item is required", ErrValidation)
	// ErrInvalidStatus is returned for a transition the lifecycle forbids.
	ErrInvalidStatus = fmt.Errorf("documents: invalid status transition: %w", shared.ErrConflict)
	// ErrAlreadyConverted is returned when a quote was converted before.
	ErrAlreadyConverted = fmt.Errorf("documents: quote already converted: %w", shared.ErrConflict)
)

func stockLines(items []Item) []inventory.Line {
	out := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		if item.InventoryItemID == 0 {
			continue
		}
		out = append(out, inventory.Line{ItemID: item.InventoryItemID, Quantity: item.Quantity})
	}
	return out
}
