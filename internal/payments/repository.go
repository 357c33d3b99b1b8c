package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/documents"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const paymentColumns = `id, company_id, document_id, amount, payment_date, method, notes, reference, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var (
		p     Payment
		docID *int64
		notes *string
	)
	if err := row.Scan(&p.ID, &p.CompanyID, &docID, &p.Amount, &p.PaymentDate, &p.Method, &notes, &p.Reference, &p.CreatedBy, &p.CreatedAt); err != nil {
		return Payment{}, err
	}
	if docID != nil {
		p.DocumentID = *docID
	}
	if notes != nil {
		p.Notes = *notes
	}
	return p, nil
}

// Get returns one payment of the company.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

// List returns payments, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Payment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE company_id=$1 AND ($2::BIGINT = 0 OR document_id=$2)`,
		filter.CompanyID, filter.DocumentID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE company_id=$1 AND ($2::BIGINT = 0 OR document_id=$2)
ORDER BY payment_date DESC, id DESC LIMIT $3 OFFSET $4`, filter.CompanyID, filter.DocumentID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (t *txRepo) LockDocument(ctx context.Context, companyID, id int64) (documents.Document, error) {
	var doc documents.Document
	err := t.tx.QueryRow(ctx, `SELECT id, company_id, code, doc_type, status, total_amount, due_date
FROM documents WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id).
		Scan(&doc.ID, &doc.CompanyID, &doc.Code, &doc.Type, &doc.Status, &doc.TotalAmount, &doc.DueDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return documents.Document{}, ErrDocumentNotFound
	}
	return doc, err
}

func (t *txRepo) SumPayments(ctx context.Context, companyID, documentID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE company_id=$1 AND document_id=$2`,
		companyID, documentID).Scan(&sum)
	return sum, err
}

func (t *txRepo) SetDocumentStatus(ctx context.Context, documentID int64, status documents.Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE documents SET status=$2, updated_at=NOW() WHERE id=$1`, documentID, status)
	return err
}

func (t *txRepo) GetForUpdate(ctx context.Context, companyID, id int64) (Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

func (t *txRepo) Insert(ctx context.Context, p Payment) (Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx, `INSERT INTO payments (company_id, document_id, amount, payment_date, method, notes, reference, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING `+paymentColumns,
		p.CompanyID, nullInt(p.DocumentID), p.Amount, p.PaymentDate, p.Method, p.Notes, p.Reference, p.CreatedBy))
}

func (t *txRepo) Update(ctx context.Context, p Payment) (Payment, error) {
	updated, err := scanPayment(t.tx.QueryRow(ctx, `UPDATE payments SET document_id=$3, amount=$4, payment_date=$5, method=$6, notes=$7
WHERE company_id=$1 AND id=$2 RETURNING `+paymentColumns,
		p.CompanyID, p.ID, nullInt(p.DocumentID), p.Amount, p.PaymentDate, p.Method, p.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return updated, err
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE id=$1`, id)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
