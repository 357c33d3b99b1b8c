package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and updates companies in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a company by id.
func (r *Repository) Get(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, name, currency_symbol, tax_rate, created_at FROM companies WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.CurrencySymbol, &c.TaxRate, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

// ListIDs returns every company id in ascending order.
func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateSettings stores the tax rate and currency symbol.
func (r *Repository) UpdateSettings(ctx context.Context, id int64, input SettingsInput) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `UPDATE companies SET currency_symbol=$2, tax_rate=$3 WHERE id=$1
RETURNING id, name, currency_symbol, tax_rate, created_at`, id, input.CurrencySymbol, input.TaxRate).
		Scan(&c.ID, &c.Name, &c.CurrencySymbol, &c.TaxRate, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}
