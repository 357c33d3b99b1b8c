package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads audit_logs through pgx.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed timeline repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// TimelineWindow returns rows ordered newest first.
func (r *PgRepository) TimelineWindow(ctx context.Context, q WindowQuery) ([]TimelineRow, error) {
	where := []string{"company_id=$1"}
	args := []any{q.CompanyID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !q.From.IsZero() {
		add("occurred_at>=$%d", q.From)
	}
	if !q.To.IsZero() {
		add("occurred_at<$%d", q.To)
	}
	if q.ActorID != 0 {
		add("actor_id=$%d", q.ActorID)
	}
	if q.Entity != "" {
		add("entity=$%d", q.Entity)
	}
	if q.Action != "" {
		add("action=$%d", q.Action)
	}
	args = append(args, q.Limit, q.Offset)
	sql := fmt.Sprintf(`SELECT occurred_at, COALESCE(actor_id, 0), action, entity, entity_id, meta
FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TimelineRow{}
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("decode audit meta: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
