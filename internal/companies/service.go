package companies

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort abstracts persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Company, error)
	ListIDs(ctx context.Context) ([]int64, error)
	UpdateSettings(ctx context.Context, id int64, input SettingsInput) (Company, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service serves company configuration through the cache.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	audit    AuditPort
	logger   *slog.Logger
	validate *validator.Validate
	group    singleflight.Group
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger, validate: validator.New()}
}

// Settings returns the company configuration. Concurrent misses for the same
// company share one load.
func (s *Service) Settings(ctx context.Context, companyID int64) (Company, error) {
	if companyID <= 0 {
		return Company{}, ErrNotFound
	}
	v, err, _ := s.group.Do(strconv.FormatInt(companyID, 10), func() (any, error) {
		company, err := s.cache.Fetch(ctx, companyID, func(ctx context.Context) (Company, error) {
			return s.repo.Get(ctx, companyID)
		})
		if err != nil {
			return Company{}, err
		}
		return company, nil
	})
	if err != nil {
		return Company{}, err
	}
	return v.(Company), nil
}

// ListIDs returns every company id.
func (s *Service) ListIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListIDs(ctx)
}

// UpdateSettings validates and stores new settings, then invalidates the cache.
func (s *Service) UpdateSettings(ctx context.Context, companyID int64, input SettingsInput) (Company, error) {
	if err := s.validate.Struct(input); err != nil {
		return Company{}, fmt.Errorf("%w: %s", ErrInvalidSettings, err.Error())
	}
	if input.TaxRate.IsNegative() {
		return Company{}, fmt.Errorf("%w: tax rate must be >= 0", ErrInvalidSettings)
	}
	company, err := s.repo.UpdateSettings(ctx, companyID, input)
	if err != nil {
		return Company{}, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump company cache", slog.Any("error", err), slog.Int64("company_id", companyID))
	}
	if s.audit != nil {
		actor, _ := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: companyID,
			ActorID:   actor.UserID,
			Action:    "companies:settings_update",
			Entity:    "company",
			EntityID:  strconv.FormatInt(companyID, 10),
			Meta:      map[string]any{"tax_rate": company.TaxRate.String(), "currency_symbol": company.CurrencySymbol},
		})
	}
	return company, nil
}
