package procurement

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// ParseForm reads a PO form. Lines missing an item, quantity or price, or
// carrying values that do not parse, are skipped.
func ParseForm(values url.Values) (Input, error) {
	supplierID, err := strconv.ParseInt(strings.TrimSpace(values.Get("supplier_id")), 10, 64)
	if err != nil || supplierID <= 0 {
		return Input{}, fmt.Errorf("%w: Supplier is required", ErrValidation)
	}
	input := Input{SupplierID: supplierID, Notes: strings.TrimSpace(values.Get("notes"))}
	for _, row := range shared.IndexedRows(values, "items") {
		rawItem, rawQty, rawPrice := row.Get("inventory_item_id"), row.Get("quantity"), row.Get("price")
		if rawItem == "" || rawQty == "" || rawPrice == "" {
			continue
		}
		itemID, err := strconv.ParseInt(rawItem, 10, 64)
		if err != nil || itemID <= 0 {
			continue
		}
		qty, err := strconv.ParseInt(rawQty, 10, 64)
		if err != nil || qty <= 0 {
			continue
		}
		price, err := pricing.ParseAmount(rawPrice)
		if err != nil || price.IsNegative() {
			continue
		}
		input.Lines = append(input.Lines, LineInput{
			InventoryItemID: itemID,
			Code:            row.Get("code"),
			Quantity:        qty,
			UnitPrice:       price,
		})
	}
	return input, nil
}
