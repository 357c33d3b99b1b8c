package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, company_id, name, description, quantity, unit_price, discount, supplier_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var supplierID *int64
	if err := row.Scan(&item.ID, &item.CompanyID, &item.Name, &item.Description, &item.Quantity, &item.UnitPrice, &item.Discount, &supplierID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	if supplierID != nil {
		item.SupplierID = *supplierID
	}
	return item, nil
}

// GetItem loads one item scoped to the company.
func (r *Repository) GetItem(ctx context.Context, companyID, id int64) (Item, error) {
	if r == nil {
		return Item{}, errors.New("inventory repository not initialised")
	}
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE company_id=$1 AND id=$2`, companyID, id))
}

// ListItems returns a page of items and the total count.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	if r == nil {
		return nil, 0, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	search := "%" + filter.Search + "%"
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE company_id=$1 AND name ILIKE $2`, filter.CompanyID, search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE company_id=$1 AND name ILIKE $2
ORDER BY name ASC, id ASC
LIMIT $3 OFFSET $4`, filter.CompanyID, search, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// CreateItem inserts a new item.
func (r *Repository) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	if r == nil {
		return Item{}, errors.New("inventory repository not initialised")
	}
	return scanItem(r.pool.QueryRow(ctx, `INSERT INTO inventory_items (company_id, name, description, quantity, unit_price, discount, supplier_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING `+itemColumns, input.CompanyID, input.Name, input.Description, input.Quantity, input.UnitPrice, input.Discount, nullInt(input.SupplierID)))
}

// ListMovements returns the newest ledger rows for an item.
func (r *Repository) ListMovements(ctx context.Context, companyID, itemID int64, limit int) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, item_id, reason, requested, applied, balance, clamped, ref_module, ref_id, ref_code, COALESCE(actor_id, 0), created_at
FROM inventory_movements
WHERE company_id=$1 AND item_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3`, companyID, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.ItemID, &m.Reason, &m.Requested, &m.Applied, &m.Balance, &m.Clamped, &m.RefModule, &m.RefID, &m.RefCode, &m.ActorID, &m.At); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// NewTxStore binds a Store to an open transaction owned by another repository.
func NewTxStore(tx pgx.Tx) Store {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) GetItemForUpdate(ctx context.Context, companyID, itemID int64) (Item, error) {
	return scanItem(s.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, itemID))
}

func (s *txStore) SetItemQuantity(ctx context.Context, itemID, quantity int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE inventory_items SET quantity=$2, updated_at=NOW() WHERE id=$1`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: set quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO inventory_movements (company_id, item_id, reason, requested, applied, balance, clamped, ref_module, ref_id, ref_code, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, m.CompanyID, m.ItemID, string(m.Reason), m.Requested, m.Applied, m.Balance, m.Clamped, m.RefModule, m.RefID, m.RefCode, nullInt(m.ActorID), m.At)
	return err
}

func (s *txStore) Outstanding(ctx context.Context, ref Reference, itemID int64) (int64, error) {
	var taken int64
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(-SUM(applied), 0) FROM inventory_movements
WHERE company_id=$1 AND ref_module=$2 AND ref_id=$3 AND item_id=$4 AND reason IN ('consume','restore')`,
		ref.CompanyID, ref.Module, ref.ID, itemID).Scan(&taken)
	return taken, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
