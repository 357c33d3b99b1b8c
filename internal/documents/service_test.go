package documents

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/companies"
	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/shared"
)

const (
	companyID = int64(7)
	actorID   = int64(3)
)

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	settings := staticSettings{companyID: {ID: companyID, CurrencySymbol: "L", TaxRate: decimal.NewFromInt(15)}}
	svc := NewService(repo, settings, nil, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return svc, repo
}

func amount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func line(itemID, qty int64, price, discount string) LineSpec {
	return LineSpec{
		InventoryItemID: itemID,
		Description:     "line",
		Quantity:        qty,
		UnitPrice:       decimal.RequireFromString(price),
		Discount:        decimal.RequireFromString(discount),
	}
}

func TestCreateInvoicePricesAndConsumesStock(t *testing.T) {
	svc, repo := newTestService(t)
	hammer := repo.stock.Add(companyID, "Hammer", 5)

	doc, items, err := svc.Create(context.Background(), companyID, actorID, Input{
		Type:  TypeInvoice,
		Lines: []LineSpec{line(hammer, 3, "100.00", "10")},
	})
	require.NoError(t, err)
	require.Equal(t, "I-7-000001", doc.Code)
	require.Equal(t, StatusDraft, doc.Status)
	amount(t, "310.50", doc.TotalAmount)
	require.Len(t, items, 1)
	require.Equal(t, int64(2), repo.stock.Quantity(hammer))
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), doc.IssuedDate)
}

func TestCreateClampsStockAtZero(t *testing.T) {
	svc, repo := newTestService(t)
	x := repo.stock.Add(companyID, "X", 5)
	y := repo.stock.Add(companyID, "Y", 0)

	_, _, err := svc.Create(context.Background(), companyID, actorID, Input{
		Type:  TypeInvoice,
		Lines: []LineSpec{line(y, 2, "10", "0")},
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), repo.stock.Quantity(y))
	require.Equal(t, int64(5), repo.stock.Quantity(x))
	require.Len(t, repo.stock.Movements, 1)
	require.True(t, repo.stock.Movements[0].Clamped)
}

func TestQuoteDoesNotConsumeStock(t *testing.T) {
	svc, repo := newTestService(t)
	x := repo.stock.Add(companyID, "X", 5)

	doc, _, err := svc.Create(context.Background(), companyID, actorID, Input{
		Type:  TypeQuote,
		Lines: []LineSpec{line(x, 4, "10", "0")},
	})
	require.NoError(t, err)
	require.Equal(t, "Q-7-000001", doc.Code)
	require.Equal(t, int64(5), repo.stock.Quantity(x))
	require.Empty(t, repo.stock.Movements)
}

func TestSequentialCodesPerType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	custom := LineSpec{Description: "Labour", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}

	var prev int64
	for i := 0; i < 5; i++ {
		doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{custom}})
		require.NoError(t, err)
		require.Regexp(t, `^[A-Z]-\d+-\d{6}$`, doc.Code)
		require.Greater(t, doc.ID, prev)
		prev = doc.ID
	}
	quote, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeQuote, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	require.Equal(t, "Q-7-000001", quote.Code)

	next, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	require.Equal(t, "I-7-000006", next.Code)
}

func TestAllocationSkipsLegacyAndTakenCodes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	custom := LineSpec{Description: "Labour", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}

	_, _, err := svc.Create(ctx, companyID, actorID, Input{Code: "I-7-000009", Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, companyID, actorID, Input{Code: "INV-LEGACY", Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	require.Equal(t, "I-7-000010", doc.Code)

	_, _, err = svc.Create(ctx, companyID, actorID, Input{Code: "I-7-000012", Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	// last by id is I-7-000012, so the next is 13.
	doc, _, err = svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	require.Equal(t, "I-7-000013", doc.Code)
	require.Len(t, repo.docs, 5)
}

func TestCreateDuplicateCode(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	custom := LineSpec{Description: "Labour", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}

	_, _, err := svc.Create(ctx, companyID, actorID, Input{Code: "I-7-000100", Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, companyID, actorID, Input{Code: "I-7-000100", Type: TypeInvoice, Lines: []LineSpec{custom}})
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, _, err = svc.Create(ctx, companyID, actorID, Input{Code: "I-7-000100", Type: TypeQuote, Lines: []LineSpec{custom}})
	require.NoError(t, err)
	require.Len(t, repo.docs, 2)
}

func TestCreateEmptyDocumentFails(t *testing.T) {
	svc, repo := newTestService(t)

	_, _, err := svc.Create(context.Background(), companyID, actorID, Input{Type: TypeInvoice})
	require.ErrorIs(t, err, ErrEmptyDocument)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.docs)
}

func TestCreatePaidRecordsPayment(t *testing.T) {
	svc, repo := newTestService(t)

	doc, _, err := svc.Create(context.Background(), companyID, actorID, Input{
		Type:   TypeInvoice,
		Status: StatusPaid,
		Lines:  []LineSpec{{Description: "Service", Quantity: 2, UnitPrice: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)
	require.Len(t, repo.payments, 1)
	p := repo.payments[0]
	require.Equal(t, doc.ID, p.DocumentID)
	amount(t, "115.00", p.Amount)
	require.Equal(t, "cash", p.Method)
	require.Equal(t, "Auto-generated", p.Notes)
	require.NotEmpty(t, p.Reference)
}

func TestCreateRollsBackEverythingOnFailure(t *testing.T) {
	svc, repo := newTestService(t)
	x := repo.stock.Add(companyID, "X", 5)
	repo.failPayments = true

	_, _, err := svc.Create(context.Background(), companyID, actorID, Input{
		Type:   TypeInvoice,
		Status: StatusPaid,
		Lines:  []LineSpec{line(x, 2, "10", "0")},
	})
	require.ErrorIs(t, err, errPaymentsUnavailable)
	require.Empty(t, repo.docs)
	require.Empty(t, repo.items)
	require.Equal(t, int64(5), repo.stock.Quantity(x))
	require.Empty(t, repo.stock.Movements)
}

func TestCreateRejectsForeignInventoryItem(t *testing.T) {
	svc, repo := newTestService(t)
	foreign := repo.stock.Add(99, "Other", 10)

	for _, typ := range []Type{TypeInvoice, TypeQuote} {
		_, _, err := svc.Create(context.Background(), companyID, actorID, Input{
			Type:  typ,
			Lines: []LineSpec{line(foreign, 1, "10", "0")},
		})
		require.ErrorIs(t, err, inventory.ErrItemNotFound)
		require.ErrorIs(t, err, shared.ErrNotFound)
	}
	require.Empty(t, repo.docs)
	require.Equal(t, int64(10), repo.stock.Quantity(foreign))
}

func TestCreateRejectsInvalidInitialStatus(t *testing.T) {
	svc, _ := newTestService(t)
	custom := LineSpec{Description: "Labour", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}

	_, _, err := svc.Create(context.Background(), companyID, actorID, Input{Type: TypeQuote, Status: StatusPaid, Lines: []LineSpec{custom}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, _, err = svc.Create(context.Background(), companyID, actorID, Input{Lines: []LineSpec{custom}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateReversesThenAppliesStrict(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "X", 5)

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{line(x, 3, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, int64(2), repo.stock.Quantity(x))

	updated, items, err := svc.Update(ctx, companyID, actorID, doc.ID, Input{Lines: []LineSpec{line(x, 4, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, int64(1), repo.stock.Quantity(x))
	require.Equal(t, doc.Code, updated.Code)
	amount(t, "46.00", updated.TotalAmount)
	require.Len(t, items, 1)

	_, _, err = svc.Update(ctx, companyID, actorID, doc.ID, Input{Lines: []LineSpec{line(x, 6, "10", "0")}})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, "X", short.Name)
	require.Equal(t, int64(5), short.Available)
	require.Equal(t, int64(1), repo.stock.Quantity(x))

	_, kept, err := svc.Get(ctx, companyID, doc.ID)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	require.Equal(t, int64(4), kept[0].Quantity)
}

func TestUpdateEmptyFails(t *testing.T) {
	svc, repo := newTestService(t)
	x := repo.stock.Add(companyID, "X", 5)
	doc, _, err := svc.Create(context.Background(), companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{line(x, 1, "10", "0")}})
	require.NoError(t, err)

	_, _, err = svc.Update(context.Background(), companyID, actorID, doc.ID, Input{})
	require.ErrorIs(t, err, ErrEmptyDocument)
	require.Equal(t, int64(4), repo.stock.Quantity(x))
}

func TestUpdateTypeChangeRebasesCode(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "X", 10)

	quote, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeQuote, Lines: []LineSpec{line(x, 2, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, "Q-7-000001", quote.Code)

	invoice, _, err := svc.Update(ctx, companyID, actorID, quote.ID, Input{Type: TypeInvoice, Lines: []LineSpec{line(x, 2, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, "I-7-000001", invoice.Code)
	require.Equal(t, TypeInvoice, invoice.Type)
	require.Equal(t, int64(8), repo.stock.Quantity(x))

	other, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeQuote, Lines: []LineSpec{line(x, 1, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, "Q-7-000001", other.Code)

	moved, _, err := svc.Update(ctx, companyID, actorID, other.ID, Input{Type: TypeInvoice, Lines: []LineSpec{line(x, 1, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, "I-7-000002", moved.Code)

	back, _, err := svc.Update(ctx, companyID, actorID, moved.ID, Input{Type: TypeQuote, Lines: []LineSpec{line(x, 1, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, "Q-7-000002", back.Code)
	require.Equal(t, int64(8), repo.stock.Quantity(x))
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "X", 10)
	lines := []LineSpec{line(x, 1, "10", "0")}

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: lines})
	require.NoError(t, err)

	sent, _, err := svc.Update(ctx, companyID, actorID, doc.ID, Input{Status: StatusSent, Lines: lines})
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)

	_, _, err = svc.Update(ctx, companyID, actorID, doc.ID, Input{Status: StatusConverted, Lines: lines})
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.Equal(t, int64(9), repo.stock.Quantity(x))
}

func TestUpdateExplicitDuplicateCode(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "X", 10)
	lines := []LineSpec{line(x, 1, "10", "0")}

	first, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: lines})
	require.NoError(t, err)
	second, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: lines})
	require.NoError(t, err)

	_, _, err = svc.Update(ctx, companyID, actorID, second.ID, Input{Code: first.Code, Lines: lines})
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.Equal(t, int64(8), repo.stock.Quantity(x))
}

func TestDeleteRestoresStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "X", 5)

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{line(x, 3, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, int64(2), repo.stock.Quantity(x))

	require.NoError(t, svc.Delete(ctx, companyID, actorID, doc.ID))
	require.Equal(t, int64(5), repo.stock.Quantity(x))
	require.Empty(t, repo.docs)
	require.Empty(t, repo.items)

	require.ErrorIs(t, svc.Delete(ctx, companyID, actorID, doc.ID), ErrNotFound)
}

func TestDeleteAfterClampLeavesNoPhantomStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	y := repo.stock.Add(companyID, "Y", 0)

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{line(y, 2, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, int64(0), repo.stock.Quantity(y))

	require.NoError(t, svc.Delete(ctx, companyID, actorID, doc.ID))
	require.Equal(t, int64(0), repo.stock.Quantity(y))
}

func TestUpdateAfterClampRestoresOnlyConsumed(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	y := repo.stock.Add(companyID, "Y", 1)

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{line(y, 3, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, int64(0), repo.stock.Quantity(y))

	_, _, err = svc.Update(ctx, companyID, actorID, doc.ID, Input{Lines: []LineSpec{line(y, 2, "10", "0")}})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(1), short.Available)
	require.Equal(t, int64(0), repo.stock.Quantity(y))

	_, _, err = svc.Update(ctx, companyID, actorID, doc.ID, Input{Lines: []LineSpec{line(y, 1, "10", "0")}})
	require.NoError(t, err)
	require.Equal(t, int64(0), repo.stock.Quantity(y))

	require.NoError(t, svc.Delete(ctx, companyID, actorID, doc.ID))
	require.Equal(t, int64(1), repo.stock.Quantity(y))
}

func TestDeleteForeignCompanyIsNotFound(t *testing.T) {
	svc, repo := newTestService(t)
	x := repo.stock.Add(companyID, "X", 5)
	doc, _, err := svc.Create(context.Background(), companyID, actorID, Input{Type: TypeInvoice, Lines: []LineSpec{line(x, 1, "10", "0")}})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), 99, actorID, doc.ID), shared.ErrNotFound)
	require.Len(t, repo.docs, 1)
}

func TestConvertQuoteToInvoice(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "X", 5)
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	quote, quoteItems, err := svc.Create(ctx, companyID, actorID, Input{
		Type:     TypeQuote,
		ClientID: 12,
		DueDate:  &due,
		Lines: []LineSpec{
			line(x, 2, "100", "10"),
			{Description: "Delivery", Quantity: 1, UnitPrice: decimal.NewFromInt(25)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), repo.stock.Quantity(x))

	invoice, err := svc.Convert(ctx, companyID, actorID, quote.ID)
	require.NoError(t, err)
	require.Equal(t, TypeInvoice, invoice.Type)
	require.Equal(t, "I-7-000001", invoice.Code)
	require.Equal(t, StatusDraft, invoice.Status)
	require.Equal(t, int64(12), invoice.ClientID)
	require.Equal(t, &due, invoice.DueDate)
	require.True(t, quote.TotalAmount.Equal(invoice.TotalAmount))
	require.Equal(t, int64(3), repo.stock.Quantity(x))

	_, invoiceItems, err := svc.Get(ctx, companyID, invoice.ID)
	require.NoError(t, err)
	require.Len(t, invoiceItems, len(quoteItems))
	for i := range quoteItems {
		require.Equal(t, quoteItems[i].Description, invoiceItems[i].Description)
		require.Equal(t, quoteItems[i].Quantity, invoiceItems[i].Quantity)
		require.True(t, quoteItems[i].UnitPrice.Equal(invoiceItems[i].UnitPrice))
		require.True(t, quoteItems[i].Discount.Equal(invoiceItems[i].Discount))
	}

	converted, _, err := svc.Get(ctx, companyID, quote.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, converted.Status)

	_, err = svc.Convert(ctx, companyID, actorID, quote.ID)
	require.ErrorIs(t, err, ErrAlreadyConverted)
	require.Equal(t, int64(3), repo.stock.Quantity(x))
	require.Len(t, repo.docs, 2)

	_, err = svc.Convert(ctx, companyID, actorID, invoice.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.Update(ctx, companyID, actorID, quote.ID, Input{Lines: []LineSpec{line(x, 1, "1", "0")}})
	require.ErrorIs(t, err, ErrAlreadyConverted)
}

func TestMarkOverdue(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	past := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	custom := []LineSpec{{Description: "Labour", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}}

	sent, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, Status: StatusSent, DueDate: &past, Lines: custom})
	require.NoError(t, err)
	draft, _, err := svc.Create(ctx, companyID, actorID, Input{Type: TypeInvoice, DueDate: &past, Lines: custom})
	require.NoError(t, err)

	n, err := svc.MarkOverdue(ctx, companyID, svc.today())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, StatusOverdue, repo.docs[sent.ID].Status)
	require.Equal(t, StatusDraft, repo.docs[draft.ID].Status)
}

func TestSnapshotBreakdown(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	x := repo.stock.Add(companyID, "Hammer", 5)

	doc, _, err := svc.Create(ctx, companyID, actorID, Input{
		Type: TypeInvoice,
		Lines: []LineSpec{
			{InventoryItemID: x, Quantity: 3, UnitPrice: decimal.NewFromInt(100), Discount: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, companyID, doc.ID, true)
	require.NoError(t, err)
	require.Equal(t, "inv_I-7-000001.pdf", snap.Filename())
	require.Equal(t, "L", snap.CurrencySymbol)
	require.Len(t, snap.Lines, 1)
	require.Equal(t, "Hammer", snap.Lines[0].Name)
	amount(t, "270.00", snap.Lines[0].Net)
	amount(t, "270.00", snap.Breakdown.Subtotal)
	amount(t, "40.50", snap.Breakdown.Tax)
	amount(t, "310.50", snap.Breakdown.Total)

	untaxed, err := svc.Snapshot(ctx, companyID, doc.ID, false)
	require.NoError(t, err)
	amount(t, "0", untaxed.Breakdown.Tax)
	amount(t, "270.00", untaxed.Breakdown.Total)
}

func TestSettingsFailureAbortsCreate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticSettings{}, nil, nil, nil, nil)
	custom := []LineSpec{{Description: "Labour", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}}

	_, _, err := svc.Create(context.Background(), companyID, actorID, Input{Type: TypeInvoice, Lines: custom})
	require.ErrorIs(t, err, companies.ErrNotFound)
	require.Empty(t, repo.docs)
}
