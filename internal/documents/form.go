package documents

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

const dateLayout = "2006-01-02"

// ParseMode selects how malformed line quantities are treated.
type ParseMode int

const (
	// Lenient normalizes non-positive or unparsable quantities to 1.
	Lenient ParseMode = iota
	// Strict rejects them.
	Strict
)

// ParseForm turns a submitted form into an Input. Lines come from keys shaped
// like items[<index>][field] and keep the order of their indexes. A line with
// neither an inventory item nor a description is dropped.
func ParseForm(values url.Values, mode ParseMode) (Input, error) {
	var input Input
	input.Code = strings.TrimSpace(values.Get("code"))
	input.Notes = strings.TrimSpace(values.Get("notes"))

	if raw := values.Get("type"); strings.TrimSpace(raw) != "" {
		t, err := ParseType(raw)
		if err != nil {
			return Input{}, err
		}
		input.Type = t
	}
	if raw := values.Get("status"); strings.TrimSpace(raw) != "" {
		s, err := ParseStatus(raw)
		if err != nil {
			return Input{}, err
		}
		input.Status = s
	}
	clientID, err := parseID(values.Get("client_id"), "client_id")
	if err != nil {
		return Input{}, err
	}
	input.ClientID = clientID

	if raw := strings.TrimSpace(values.Get("issued_date")); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Input{}, fmt.Errorf("%w: invalid issued_date %q", ErrValidation, raw)
		}
		input.IssuedDate = d
	}
	if raw := strings.TrimSpace(values.Get("due_date")); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Input{}, fmt.Errorf("%w: invalid due_date %q", ErrValidation, raw)
		}
		input.DueDate = &d
	}

	lines, err := ParseLines(values, mode)
	if err != nil {
		return Input{}, err
	}
	input.Lines = lines
	return input, nil
}

// ParseLines extracts the ordered line specs of a form.
func ParseLines(values url.Values, mode ParseMode) ([]LineSpec, error) {
	rows := shared.IndexedRows(values, "items")
	lines := make([]LineSpec, 0, len(rows))
	for _, row := range rows {
		itemID, err := parseID(row.Get("inventory_item_id"), fmt.Sprintf("items[%d][inventory_item_id]", row.Index))
		if err != nil {
			return nil, err
		}
		description := row.Get("description")
		if itemID == 0 && description == "" {
			continue
		}
		qty, err := parseQuantity(row.Get("quantity"), mode)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", row.Index, err)
		}
		price, err := pricing.ParseAmount(row.Get("unit_price"))
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", row.Index, err)
		}
		discount, err := pricing.ParseAmount(row.Get("discount"))
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", row.Index, err)
		}
		line := LineSpec{
			InventoryItemID: itemID,
			Description:     description,
			Quantity:        qty,
			UnitPrice:       price,
			Discount:        discount,
		}
		if err := line.pricingLine().Validate(); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", row.Index, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseQuantity(raw string, mode ParseMode) (int64, error) {
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err == nil && qty >= 1 {
		return qty, nil
	}
	if mode == Strict {
		return 0, fmt.Errorf("%w: quantity must be a whole number >= 1, got %q", ErrValidation, raw)
	}
	return 1, nil
}

func parseID(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrValidation, field, raw)
	}
	return id, nil
}
