package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service resolves the permissions a user holds inside a company.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns the union of permissions granted through the
// user's roles in the company.
func (s *Service) EffectivePermissions(ctx context.Context, companyID, userID int64) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("rbac: service not initialised")
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT rp.permission
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
WHERE ur.user_id=$1 AND ur.company_id=$2
ORDER BY rp.permission`, userID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []string{}
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}
