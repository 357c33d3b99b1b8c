package procurement

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

const idempotencyModule = "procurement.receipt"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool        *pgxpool.Pool
	idempotency *shared.IdempotencyStore
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, idem *shared.IdempotencyStore) *Repository {
	return &Repository{pool: pool, idempotency: idem}
}

type txRepo struct {
	tx          pgx.Tx
	idempotency *shared.IdempotencyStore
	stock       inventory.Store
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, idempotency: r.idempotency, stock: inventory.NewTxStore(tx)})
	})
}

const poColumns = `id, company_id, order_number, supplier_id, total_amount, notes, received, received_at, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPO(row rowScanner) (PurchaseOrder, error) {
	var (
		po    PurchaseOrder
		notes *string
	)
	err := row.Scan(&po.ID, &po.CompanyID, &po.Number, &po.SupplierID, &po.TotalAmount, &notes,
		&po.Received, &po.ReceivedAt, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if notes != nil {
		po.Notes = *notes
	}
	return po, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, poID int64) ([]POLine, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_order_id, inventory_item_id, code, description, quantity, unit_price
FROM purchase_order_items WHERE purchase_order_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []POLine{}
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.InventoryItemID, &line.Code, &line.Description, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetPO returns purchase order and lines.
func (r *Repository) GetPO(ctx context.Context, companyID, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	lines, err := loadLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

// ListPOs returns orders, newest first, with the total match count.
func (r *Repository) ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := []string{"company_id=$1"}
	args := []any{filter.CompanyID}
	if filter.SupplierID != 0 {
		args = append(args, filter.SupplierID)
		where = append(where, fmt.Sprintf("supplier_id=$%d", len(args)))
	}
	if filter.Received != nil {
		args = append(args, *filter.Received)
		where = append(where, fmt.Sprintf("received=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		poColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, po)
	}
	return out, total, rows.Err()
}

func (t *txRepo) Stock() inventory.Store {
	return t.stock
}

func (t *txRepo) LockNumbering(ctx context.Context, companyID int64) error {
	return db.AdvisoryXactLock(ctx, t.tx, shared.SequenceLockKey(companyID, "po"))
}

func (t *txRepo) LastNumber(ctx context.Context, companyID int64) (string, error) {
	var number string
	err := t.tx.QueryRow(ctx, `SELECT order_number FROM purchase_orders WHERE company_id=$1 ORDER BY id DESC LIMIT 1`, companyID).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (t *txRepo) NumberExists(ctx context.Context, companyID int64, number string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM purchase_orders WHERE company_id=$1 AND order_number=$2)`, companyID, number).Scan(&exists)
	return exists, err
}

func (t *txRepo) ItemName(ctx context.Context, companyID, itemID int64) (string, bool, error) {
	var name string
	err := t.tx.QueryRow(ctx, `SELECT name FROM inventory_items WHERE company_id=$1 AND id=$2`, companyID, itemID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (t *txRepo) GetPOForUpdate(ctx context.Context, companyID, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(t.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	lines, err := loadLines(ctx, t.tx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

func (t *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	created, err := scanPO(t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (company_id, order_number, supplier_id, total_amount, notes, received, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,FALSE,$6,NOW(),NOW()) RETURNING `+poColumns,
		po.CompanyID, po.Number, po.SupplierID, po.TotalAmount, po.Notes, po.CreatedBy))
	if db.IsUniqueViolation(err) {
		return PurchaseOrder{}, fmt.Errorf("%w: %s", ErrDuplicateNumber, po.Number)
	}
	return created, err
}

func (t *txRepo) UpdatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	updated, err := scanPO(t.tx.QueryRow(ctx, `UPDATE purchase_orders SET supplier_id=$2, total_amount=$3, notes=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+poColumns, po.ID, po.SupplierID, po.TotalAmount, po.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return updated, err
}

func (t *txRepo) DeletePO(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	return err
}

func (t *txRepo) DeletePOLines(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id=$1`, poID)
	return err
}

func (t *txRepo) InsertPOLines(ctx context.Context, poID int64, lines []POLine) ([]POLine, error) {
	out := make([]POLine, 0, len(lines))
	for _, line := range lines {
		line.POID = poID
		err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (purchase_order_id, inventory_item_id, code, description, quantity, unit_price)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, poID, line.InventoryItemID, line.Code, line.Description, line.Quantity, line.UnitPrice).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (t *txRepo) MarkReceived(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET received=TRUE, received_at=$2, updated_at=NOW() WHERE id=$1`, id, at)
	return err
}

func (t *txRepo) ClaimReceipt(ctx context.Context, key string) error {
	if t.idempotency == nil {
		return nil
	}
	return t.idempotency.Claim(ctx, t.tx, key, idempotencyModule)
}
