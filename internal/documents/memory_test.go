package documents

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/companies"
	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/inventory/inventorytest"
	"github.com/ledgerline/ledgerline/internal/numbering"
)

var errPaymentsUnavailable = errors.New("payments table unavailable")

type memoryRepo struct {
	docs         map[int64]Document
	items        map[int64][]Item
	payments     []Payment
	stock        *inventorytest.Store
	nextID       int64
	failPayments bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:  map[int64]Document{},
		items: map[int64][]Item{},
		stock: inventorytest.New(),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	docs := make(map[int64]Document, len(r.docs))
	for id, doc := range r.docs {
		docs[id] = doc
	}
	items := make(map[int64][]Item, len(r.items))
	for id, list := range r.items {
		items[id] = append([]Item(nil), list...)
	}
	payments := append([]Payment(nil), r.payments...)
	nextID := r.nextID
	snap := r.stock.Snapshot()

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.docs, r.items, r.payments, r.nextID = docs, items, payments, nextID
		r.stock.Restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, companyID, id int64) (Document, []Item, error) {
	doc, ok := r.docs[id]
	if !ok || doc.CompanyID != companyID {
		return Document{}, nil, ErrNotFound
	}
	return doc, append([]Item(nil), r.items[id]...), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	out := []Document{}
	for _, doc := range r.docs {
		if doc.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Type != "" && doc.Type != filter.Type {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) ItemNames(ctx context.Context, companyID int64, ids []int64) (map[int64]string, error) {
	names := map[int64]string{}
	for _, id := range ids {
		if item, ok := r.stock.Items[id]; ok && item.CompanyID == companyID {
			names[id] = item.Name
		}
	}
	return names, nil
}

func (r *memoryRepo) MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error) {
	var n int64
	for id, doc := range r.docs {
		if doc.CompanyID != companyID || doc.Type != TypeInvoice || doc.DueDate == nil || !doc.DueDate.Before(asOf) {
			continue
		}
		switch doc.Status {
		case StatusSent, StatusIssued, StatusPartial:
			doc.Status = StatusOverdue
			r.docs[id] = doc
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) nextID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) Stock() inventory.Store {
	return tx.repo.stock
}

func (tx *memoryTx) LockSequence(ctx context.Context, companyID int64, t Type) error {
	return nil
}

func (tx *memoryTx) LastCode(ctx context.Context, companyID int64, t Type) (string, error) {
	var (
		code string
		max  int64
	)
	for id, doc := range tx.repo.docs {
		if doc.CompanyID == companyID && doc.Type == t && id > max {
			max, code = id, doc.Code
		}
	}
	return code, nil
}

func (tx *memoryTx) MaxTail(ctx context.Context, companyID int64, t Type) (int64, error) {
	var max int64
	for _, doc := range tx.repo.docs {
		if doc.CompanyID != companyID || doc.Type != t {
			continue
		}
		if !numbering.IsDocumentCode(doc.Code) {
			continue
		}
		if tail, _ := numbering.Tail(doc.Code); tail > max {
			max = tail
		}
	}
	return max, nil
}

func (tx *memoryTx) CodeExists(ctx context.Context, companyID int64, t Type, code string, excludeID int64) (bool, error) {
	for id, doc := range tx.repo.docs {
		if id != excludeID && doc.CompanyID == companyID && doc.Type == t && doc.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, companyID, id int64) (Document, []Item, error) {
	return tx.repo.Get(ctx, companyID, id)
}

func (tx *memoryTx) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	if taken, _ := tx.CodeExists(ctx, doc.CompanyID, doc.Type, doc.Code, 0); taken {
		return Document{}, ErrDuplicateCode
	}
	doc.ID = tx.nextID()
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	tx.repo.docs[doc.ID] = doc
	return doc, nil
}

func (tx *memoryTx) UpdateDocument(ctx context.Context, doc Document) (Document, error) {
	if _, ok := tx.repo.docs[doc.ID]; !ok {
		return Document{}, ErrNotFound
	}
	if taken, _ := tx.CodeExists(ctx, doc.CompanyID, doc.Type, doc.Code, doc.ID); taken {
		return Document{}, ErrDuplicateCode
	}
	doc.UpdatedAt = time.Now().UTC()
	tx.repo.docs[doc.ID] = doc
	return doc, nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	doc := tx.repo.docs[id]
	doc.Status = status
	tx.repo.docs[id] = doc
	return nil
}

func (tx *memoryTx) DeleteItems(ctx context.Context, documentID int64) error {
	delete(tx.repo.items, documentID)
	return nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, documentID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		item.ID = tx.nextID()
		item.DocumentID = documentID
		out = append(out, item)
	}
	tx.repo.items[documentID] = append(tx.repo.items[documentID], out...)
	return out, nil
}

func (tx *memoryTx) DeleteDocument(ctx context.Context, id int64) error {
	if _, ok := tx.repo.docs[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.docs, id)
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, payment Payment) error {
	if tx.repo.failPayments {
		return errPaymentsUnavailable
	}
	tx.repo.payments = append(tx.repo.payments, payment)
	return nil
}

type staticSettings map[int64]companies.Company

func (s staticSettings) Settings(ctx context.Context, companyID int64) (companies.Company, error) {
	c, ok := s[companyID]
	if !ok {
		return companies.Company{}, companies.ErrNotFound
	}
	return c, nil
}
