package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryRepo struct {
	items     map[int64]Item
	movements map[int64][]Movement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Item{}, movements: map[int64][]Movement{}}
}

func (r *memoryRepo) GetItem(ctx context.Context, companyID, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok || item.CompanyID != companyID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	out := []Item{}
	for _, item := range r.items {
		if item.CompanyID == filter.CompanyID {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	r.nextID++
	item := Item{ID: r.nextID, CompanyID: input.CompanyID, Name: input.Name, Quantity: input.Quantity, UnitPrice: input.UnitPrice, Discount: input.Discount}
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, companyID, itemID int64, limit int) ([]Movement, error) {
	return r.movements[itemID], nil
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{CompanyID: 1, Name: "Drill", Quantity: 4, UnitPrice: decimal.RequireFromString("49.90")})
	require.NoError(t, err)
	require.Equal(t, int64(1), item.ID)

	_, err = svc.CreateItem(ctx, CreateItemInput{CompanyID: 1, Name: "", Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidItem)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateItem(ctx, CreateItemInput{CompanyID: 1, Name: "Saw", Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.CreateItem(ctx, CreateItemInput{CompanyID: 1, Name: "Saw", UnitPrice: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.CreateItem(ctx, CreateItemInput{CompanyID: 1, Name: "Saw", Discount: decimal.NewFromInt(101)})
	require.ErrorIs(t, err, ErrInvalidItem)
}

func TestMovementsRequireOwnedItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{CompanyID: 1, Name: "Drill", Quantity: 4})
	require.NoError(t, err)
	repo.movements[item.ID] = []Movement{{ItemID: item.ID, Reason: ReasonConsume, Requested: -1, Applied: -1, Balance: 3}}

	movements, err := svc.Movements(ctx, 1, item.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)

	_, err = svc.Movements(ctx, 2, item.ID, 10)
	require.ErrorIs(t, err, ErrItemNotFound)
}
