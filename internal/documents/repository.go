package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes of one lifecycle operation. Stock returns an
// inventory store bound to the same transaction.
type TxRepository interface {
	SequenceStore
	GetForUpdate(ctx context.Context, companyID, id int64) (Document, []Item, error)
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) (Document, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	DeleteItems(ctx context.Context, documentID int64) error
	InsertItems(ctx context.Context, documentID int64, items []Item) ([]Item, error)
	DeleteDocument(ctx context.Context, id int64) error
	InsertPayment(ctx context.Context, payment Payment) error
	Stock() inventory.Store
}

type txRepo struct {
	tx    pgx.Tx
	stock inventory.Store
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, stock: inventory.NewTxStore(tx)})
	})
}

const documentColumns = `id, company_id, code, doc_type, client_id, created_by, status, issued_date, due_date, total_amount, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc      Document
		clientID *int64
		notes    *string
	)
	err := row.Scan(&doc.ID, &doc.CompanyID, &doc.Code, &doc.Type, &clientID, &doc.CreatedBy, &doc.Status,
		&doc.IssuedDate, &doc.DueDate, &doc.TotalAmount, &notes, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	if clientID != nil {
		doc.ClientID = *clientID
	}
	if notes != nil {
		doc.Notes = *notes
	}
	return doc, nil
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var (
			item   Item
			itemID *int64
		)
		if err := rows.Scan(&item.ID, &item.DocumentID, &itemID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Discount); err != nil {
			return nil, err
		}
		if itemID != nil {
			item.InventoryItemID = *itemID
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const itemsQuery = `SELECT id, document_id, inventory_item_id, description, quantity, unit_price, discount
FROM document_items WHERE document_id=$1 ORDER BY id`

// Get returns a document with its items.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Document, []Item, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, err
	}
	rows, err := r.pool.Query(ctx, itemsQuery, id)
	if err != nil {
		return Document{}, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return Document{}, nil, err
	}
	return doc, items, nil
}

// List returns documents matching filter and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	where := []string{"company_id=$1"}
	args := []any{filter.CompanyID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("doc_type=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		documentColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// ItemNames resolves inventory item names of the company.
func (r *Repository) ItemNames(ctx context.Context, companyID int64, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM inventory_items WHERE company_id=$1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// MarkOverdue flips open invoices whose due date passed before asOf.
func (r *Repository) MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET status=$1, updated_at=NOW()
WHERE company_id=$2 AND doc_type=$3 AND status = ANY($4) AND due_date IS NOT NULL AND due_date < $5`,
		StatusOverdue, companyID, TypeInvoice, []string{string(StatusSent), string(StatusIssued), string(StatusPartial)}, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) Stock() inventory.Store {
	return t.stock
}

func (t *txRepo) LockSequence(ctx context.Context, companyID int64, docType Type) error {
	return db.AdvisoryXactLock(ctx, t.tx, shared.SequenceLockKey(companyID, string(docType)))
}

func (t *txRepo) LastCode(ctx context.Context, companyID int64, docType Type) (string, error) {
	var code string
	err := t.tx.QueryRow(ctx, `SELECT code FROM documents WHERE company_id=$1 AND doc_type=$2 ORDER BY id DESC LIMIT 1`,
		companyID, docType).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (t *txRepo) MaxTail(ctx context.Context, companyID int64, docType Type) (int64, error) {
	var tail int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(substring(code from '(\d+)$') AS BIGINT)), 0)
FROM documents WHERE company_id=$1 AND doc_type=$2 AND code ~ '^[A-Z]-\d+-\d{6}$'`, companyID, docType).Scan(&tail)
	return tail, err
}

func (t *txRepo) CodeExists(ctx context.Context, companyID int64, docType Type, code string, excludeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE company_id=$1 AND doc_type=$2 AND code=$3 AND id<>$4)`,
		companyID, docType, code, excludeID).Scan(&exists)
	return exists, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, companyID, id int64) (Document, []Item, error) {
	doc, err := scanDocument(t.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, nil, ErrNotFound
		}
		return Document{}, nil, err
	}
	rows, err := t.tx.Query(ctx, itemsQuery, id)
	if err != nil {
		return Document{}, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return Document{}, nil, err
	}
	return doc, items, nil
}

func (t *txRepo) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO documents (company_id, code, doc_type, client_id, created_by, status, issued_date, due_date, total_amount, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW()) RETURNING `+documentColumns,
		doc.CompanyID, doc.Code, doc.Type, nullInt(doc.ClientID), doc.CreatedBy, doc.Status, doc.IssuedDate, doc.DueDate, doc.TotalAmount, nullString(doc.Notes))
	created, err := scanDocument(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Document{}, fmt.Errorf("%w: %s", ErrDuplicateCode, doc.Code)
		}
		return Document{}, err
	}
	return created, nil
}

func (t *txRepo) UpdateDocument(ctx context.Context, doc Document) (Document, error) {
	row := t.tx.QueryRow(ctx, `UPDATE documents SET code=$3, doc_type=$4, client_id=$5, status=$6, issued_date=$7, due_date=$8, total_amount=$9, notes=$10, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING `+documentColumns,
		doc.CompanyID, doc.ID, doc.Code, doc.Type, nullInt(doc.ClientID), doc.Status, doc.IssuedDate, doc.DueDate, doc.TotalAmount, nullString(doc.Notes))
	updated, err := scanDocument(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Document{}, fmt.Errorf("%w: %s", ErrDuplicateCode, doc.Code)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return updated, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE documents SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	return err
}

func (t *txRepo) DeleteItems(ctx context.Context, documentID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM document_items WHERE document_id=$1`, documentID)
	return err
}

func (t *txRepo) InsertItems(ctx context.Context, documentID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		item.DocumentID = documentID
		err := t.tx.QueryRow(ctx, `INSERT INTO document_items (document_id, inventory_item_id, description, quantity, unit_price, discount)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			documentID, nullInt(item.InventoryItemID), item.Description, item.Quantity, item.UnitPrice, item.Discount).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (t *txRepo) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payments (company_id, document_id, amount, payment_date, method, notes, reference, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		p.CompanyID, p.DocumentID, p.Amount, p.Date, p.Method, p.Notes, p.Reference, p.CreatedBy)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
