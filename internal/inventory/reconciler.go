package inventory

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Store is the transactional view the reconciler mutates. Implementations are
// bound to the caller's transaction so stock moves commit or roll back with
// the document that caused them.
type Store interface {
	GetItemForUpdate(ctx context.Context, companyID, itemID int64) (Item, error)
	SetItemQuantity(ctx context.Context, itemID, quantity int64) error
	InsertMovement(ctx context.Context, movement Movement) error
	// Outstanding returns the net quantity of itemID that ref has consumed
	// and not yet restored, read from the movement ledger.
	Outstanding(ctx context.Context, ref Reference, itemID int64) (int64, error)
}

// Observer receives one call per adjusted item.
type Observer interface {
	ObserveStockAdjustment(reason Reason, clamped bool)
}

// Reconciler keeps item quantities consistent with document lines.
type Reconciler struct {
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewReconciler builds a Reconciler. Both arguments are optional.
func NewReconciler(logger *slog.Logger, observer Observer) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger, observer: observer, now: func() time.Time { return time.Now().UTC() }}
}

// Apply consumes stock for lines, clamping each item at zero instead of failing.
func (r *Reconciler) Apply(ctx context.Context, store Store, ref Reference, lines []Line) ([]Adjustment, error) {
	agg, err := aggregate(lines)
	if err != nil {
		return nil, err
	}
	out := make([]Adjustment, 0, len(agg))
	for _, line := range agg {
		item, err := r.lock(ctx, store, ref.CompanyID, line.ItemID)
		if err != nil {
			return nil, err
		}
		after := item.Quantity - line.Quantity
		clamped := after < 0
		if clamped {
			after = 0
			r.logger.Warn("inventory clamped at zero",
				slog.Int64("company_id", ref.CompanyID),
				slog.Int64("item_id", item.ID),
				slog.String("item", item.Name),
				slog.Int64("available", item.Quantity),
				slog.Int64("requested", line.Quantity),
				slog.String("ref", ref.Code))
		}
		adj, err := r.move(ctx, store, ref, item, ReasonConsume, -line.Quantity, after, clamped)
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

// ApplyStrict consumes stock for lines or, when any item is short, fails with
// an InsufficientStockError before touching any quantity.
func (r *Reconciler) ApplyStrict(ctx context.Context, store Store, ref Reference, lines []Line) ([]Adjustment, error) {
	agg, err := aggregate(lines)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(agg))
	for i, line := range agg {
		item, err := r.lock(ctx, store, ref.CompanyID, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item.Quantity < line.Quantity {
			return nil, &InsufficientStockError{ItemID: item.ID, Name: item.Name, Available: item.Quantity, Requested: line.Quantity}
		}
		items[i] = item
	}
	out := make([]Adjustment, 0, len(agg))
	for i, line := range agg {
		adj, err := r.move(ctx, store, ref, items[i], ReasonConsume, -line.Quantity, items[i].Quantity-line.Quantity, false)
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

// Reverse restores the quantities a previous version of a document consumed.
// Each item gets back at most what ref actually took, so a consume that was
// clamped at zero never turns into stock on reversal.
func (r *Reconciler) Reverse(ctx context.Context, store Store, ref Reference, oldLines []Line) ([]Adjustment, error) {
	agg, err := aggregate(oldLines)
	if err != nil {
		return nil, err
	}
	out := make([]Adjustment, 0, len(agg))
	for _, line := range agg {
		item, err := r.lock(ctx, store, ref.CompanyID, line.ItemID)
		if err != nil {
			return nil, err
		}
		taken, err := store.Outstanding(ctx, ref, item.ID)
		if err != nil {
			return nil, err
		}
		restore := min(line.Quantity, max(taken, 0))
		if restore < line.Quantity {
			r.logger.Debug("inventory restore limited to consumed quantity",
				slog.Int64("item_id", item.ID),
				slog.Int64("requested", line.Quantity),
				slog.Int64("restored", restore),
				slog.String("ref", ref.Code))
		}
		if restore == 0 {
			continue
		}
		adj, err := r.move(ctx, store, ref, item, ReasonRestore, line.Quantity, item.Quantity+restore, false)
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

// Receive credits stock arriving from a purchase order.
func (r *Reconciler) Receive(ctx context.Context, store Store, ref Reference, lines []Line) ([]Adjustment, error) {
	agg, err := aggregate(lines)
	if err != nil {
		return nil, err
	}
	out := make([]Adjustment, 0, len(agg))
	for _, line := range agg {
		item, err := r.lock(ctx, store, ref.CompanyID, line.ItemID)
		if err != nil {
			return nil, err
		}
		adj, err := r.move(ctx, store, ref, item, ReasonReceive, line.Quantity, item.Quantity+line.Quantity, false)
		if err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, nil
}

func (r *Reconciler) lock(ctx context.Context, store Store, companyID, itemID int64) (Item, error) {
	item, err := store.GetItemForUpdate(ctx, companyID, itemID)
	if err != nil {
		return Item{}, err
	}
	if item.CompanyID != companyID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *Reconciler) move(ctx context.Context, store Store, ref Reference, item Item, reason Reason, requested, after int64, clamped bool) (Adjustment, error) {
	if err := store.SetItemQuantity(ctx, item.ID, after); err != nil {
		return Adjustment{}, err
	}
	movement := Movement{
		CompanyID: ref.CompanyID,
		ItemID:    item.ID,
		Reason:    reason,
		Requested: requested,
		Applied:   after - item.Quantity,
		Balance:   after,
		Clamped:   clamped,
		RefModule: ref.Module,
		RefID:     ref.ID,
		RefCode:   ref.Code,
		ActorID:   ref.ActorID,
		At:        r.now(),
	}
	if err := store.InsertMovement(ctx, movement); err != nil {
		return Adjustment{}, err
	}
	if r.observer != nil {
		r.observer.ObserveStockAdjustment(reason, clamped)
	}
	return Adjustment{ItemID: item.ID, Name: item.Name, Before: item.Quantity, After: after, Clamped: clamped}, nil
}

// aggregate sums quantities per item, drops lines without an item and orders
// by item id so concurrent transactions lock rows in the same order.
func aggregate(lines []Line) ([]Line, error) {
	totals := map[int64]int64{}
	for _, line := range lines {
		if line.ItemID == 0 {
			continue
		}
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		totals[line.ItemID] += line.Quantity
	}
	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ItemID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}
