// Package numbering formats and parses the human readable codes given to
// documents and purchase orders: {prefix}-{company}-{sequence:06d}.
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TailWidth is the zero padded width of the sequence tail.
const TailWidth = 6

// PurchaseOrderPrefix prefixes purchase order numbers.
const PurchaseOrderPrefix = "PO"

var (
	documentCode      = regexp.MustCompile(`^[A-Z]-\d+-\d{6}$`)
	purchaseOrderCode = regexp.MustCompile(`^PO-\d+-\d{6}$`)
)

// Format renders a code. Sequences wider than TailWidth are kept intact.
func Format(prefix string, companyID, seq int64) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, companyID, TailWidth, seq)
}

// Tail parses the numeric segment after the last '-'.
func Tail(code string) (int64, bool) {
	idx := strings.LastIndex(code, "-")
	if idx < 0 || idx == len(code)-1 {
		return 0, false
	}
	seq, err := strconv.ParseInt(code[idx+1:], 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// Next returns the sequence following lastCode, or 1 when lastCode is empty or
// carries no parsable tail.
func Next(lastCode string) int64 {
	if seq, ok := Tail(lastCode); ok {
		return seq + 1
	}
	return 1
}

// Rebase re-renders code under a new prefix keeping its tail.
func Rebase(code, prefix string, companyID int64) (string, bool) {
	seq, ok := Tail(code)
	if !ok {
		return "", false
	}
	return Format(prefix, companyID, seq), true
}

// IsDocumentCode reports whether code matches the invoice/quote contract.
func IsDocumentCode(code string) bool {
	return documentCode.MatchString(code)
}

// IsPurchaseOrderCode reports whether code matches the purchase order contract.
func IsPurchaseOrderCode(code string) bool {
	return purchaseOrderCode.MatchString(code)
}
