package shared

import "fmt"

// SequenceLockKey names the advisory lock serialising code allocation for one
// company and numbering series.
func SequenceLockKey(companyID int64, series string) string {
	return fmt.Sprintf("seq:%d:%s", companyID, series)
}

// ReceiptIdempotencyKey names the idempotency entry for a purchase order receipt.
func ReceiptIdempotencyKey(purchaseOrderID int64) string {
	return fmt.Sprintf("PO-RECEIPT:%d", purchaseOrderID)
}
