package payments

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/documents"
)

// DocumentStore is the transactional view of documents and their payments.
type DocumentStore interface {
	// LockDocument loads and row-locks a document of the company.
	LockDocument(ctx context.Context, companyID, id int64) (documents.Document, error)
	SumPayments(ctx context.Context, companyID, documentID int64) (decimal.Decimal, error)
	SetDocumentStatus(ctx context.Context, documentID int64, status documents.Status) error
}

// Observer is told about every status the reconciler settles on.
type Observer interface {
	ObservePaymentReconciled(status string)
}

// Reconciler derives document status from recorded payments.
type Reconciler struct {
	logger   *slog.Logger
	observer Observer
}

// NewReconciler builds a Reconciler. Both arguments are optional.
func NewReconciler(logger *slog.Logger, observer Observer) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger, observer: observer}
}

// ResolveStatus returns the status a document should have once paid has been
// received against total. Cancelled, converted and credit documents keep
// their status. With nothing paid an overdue document stays overdue, since
// overdue detection is a separate sweep; every other one reverts to sent.
func ResolveStatus(current documents.Status, total, paid decimal.Decimal) documents.Status {
	if current.Terminal() {
		return current
	}
	switch {
	case paid.GreaterThanOrEqual(total):
		return documents.StatusPaid
	case paid.IsPositive():
		return documents.StatusPartial
	case current == documents.StatusOverdue:
		return current
	}
	return documents.StatusSent
}

// Reconcile recomputes and stores the status of one document. A zero id is a
// no-op.
func (r *Reconciler) Reconcile(ctx context.Context, store DocumentStore, companyID, documentID int64) (documents.Status, error) {
	if documentID == 0 {
		return "", nil
	}
	doc, err := store.LockDocument(ctx, companyID, documentID)
	if err != nil {
		return "", err
	}
	paid, err := store.SumPayments(ctx, companyID, documentID)
	if err != nil {
		return "", err
	}
	next := ResolveStatus(doc.Status, doc.TotalAmount, paid)
	if next != doc.Status {
		if err := store.SetDocumentStatus(ctx, documentID, next); err != nil {
			return "", err
		}
		r.logger.InfoContext(ctx, "document status reconciled",
			slog.Int64("company_id", companyID),
			slog.Int64("document_id", documentID),
			slog.String("from", string(doc.Status)),
			slog.String("to", string(next)),
			slog.String("paid", paid.StringFixed(2)))
	}
	if r.observer != nil {
		r.observer.ObservePaymentReconciled(string(next))
	}
	return next, nil
}
