package inventory

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetItem(ctx context.Context, companyID, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error)
	CreateItem(ctx context.Context, input CreateItemInput) (Item, error)
	ListMovements(ctx context.Context, companyID, itemID int64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes inventory items and their ledger.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, validate: validator.New()}
}

// CreateItem validates and stores a new item.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrInvalidItem, err.Error())
	}
	if input.UnitPrice.IsNegative() {
		return Item{}, fmt.Errorf("%w: unit price must be >= 0", ErrInvalidItem)
	}
	if input.Discount.IsNegative() || input.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return Item{}, fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidItem)
	}
	item, err := s.repo.CreateItem(ctx, input)
	if err != nil {
		return Item{}, err
	}
	if s.audit != nil {
		actor, _ := shared.ActorFromContext(ctx)
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: item.CompanyID,
			ActorID:   actor.UserID,
			Action:    "inventory:item_create",
			Entity:    "inventory_item",
			EntityID:  fmt.Sprintf("%d", item.ID),
			Meta:      map[string]any{"name": item.Name, "quantity": item.Quantity},
		})
	}
	return item, nil
}

// GetItem returns an item owned by the company.
func (s *Service) GetItem(ctx context.Context, companyID, id int64) (Item, error) {
	return s.repo.GetItem(ctx, companyID, id)
}

// ListItems lists items of a company.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	if filter.CompanyID == 0 {
		return nil, 0, fmt.Errorf("%w: company required", ErrInvalidItem)
	}
	return s.repo.ListItems(ctx, filter)
}

// Movements returns the stock ledger of an item.
func (s *Service) Movements(ctx context.Context, companyID, itemID int64, limit int) ([]Movement, error) {
	if _, err := s.repo.GetItem(ctx, companyID, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, companyID, itemID, limit)
}
