package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/numbering"
	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// numberAttempts bounds retries of a transaction whose order number collided.
const numberAttempts = 3

const stockModule = "procurement"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, companyID, id int64) (PurchaseOrder, []POLine, error)
	ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockNumbering(ctx context.Context, companyID int64) error
	LastNumber(ctx context.Context, companyID int64) (string, error)
	NumberExists(ctx context.Context, companyID int64, number string) (bool, error)
	ItemName(ctx context.Context, companyID, itemID int64) (string, bool, error)
	GetPOForUpdate(ctx context.Context, companyID, id int64) (PurchaseOrder, []POLine, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	UpdatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	DeletePO(ctx context.Context, id int64) error
	DeletePOLines(ctx context.Context, poID int64) error
	InsertPOLines(ctx context.Context, poID int64, lines []POLine) ([]POLine, error)
	MarkReceived(ctx context.Context, id int64, at time.Time) error
	// ClaimReceipt records the idempotency key of a receipt in the transaction.
	ClaimReceipt(ctx context.Context, key string) error
	Stock() inventory.Store
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates procurement flows.
type Service struct {
	repo       RepositoryPort
	reconciler *inventory.Reconciler
	audit      AuditPort
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, reconciler *inventory.Reconciler, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reconciler == nil {
		reconciler = inventory.NewReconciler(logger, nil)
	}
	return &Service{
		repo:       repo,
		reconciler: reconciler,
		audit:      audit,
		logger:     logger,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreatePurchaseOrder numbers and stores a purchase order. Lines whose item is
// not in the company are dropped. Stock is untouched until the order is
// received.
func (s *Service) CreatePurchaseOrder(ctx context.Context, companyID, actorID int64, input Input) (PurchaseOrder, []POLine, error) {
	if err := s.check(input); err != nil {
		return PurchaseOrder{}, nil, err
	}
	var (
		created PurchaseOrder
		lines   []POLine
	)
	var err error
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			resolved, total, err := s.resolveLines(ctx, tx, companyID, input.Lines)
			if err != nil {
				return err
			}
			number, err := allocateNumber(ctx, tx, companyID)
			if err != nil {
				return err
			}
			po, err := tx.CreatePO(ctx, PurchaseOrder{
				CompanyID:   companyID,
				Number:      number,
				SupplierID:  input.SupplierID,
				TotalAmount: total,
				Notes:       input.Notes,
				CreatedBy:   actorID,
			})
			if err != nil {
				return err
			}
			inserted, err := tx.InsertPOLines(ctx, po.ID, resolved)
			if err != nil {
				return err
			}
			created, lines = po, inserted
			return nil
		})
		if !errors.Is(err, ErrDuplicateNumber) {
			break
		}
		s.logger.WarnContext(ctx, "purchase order number collided, retrying", slog.Int("attempt", attempt))
	}
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	s.recordAudit(ctx, "PO_CREATE", created, actorID, map[string]any{"number": created.Number, "total": created.TotalAmount.StringFixed(2)})
	return created, lines, nil
}

// UpdatePurchaseOrder replaces the supplier, notes and every line of an order
// that has not been received.
func (s *Service) UpdatePurchaseOrder(ctx context.Context, companyID, actorID, id int64, input Input) (PurchaseOrder, []POLine, error) {
	if err := s.check(input); err != nil {
		return PurchaseOrder{}, nil, err
	}
	var (
		updated PurchaseOrder
		lines   []POLine
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, _, err := tx.GetPOForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if po.Received {
			return ErrAlreadyReceived
		}
		resolved, total, err := s.resolveLines(ctx, tx, companyID, input.Lines)
		if err != nil {
			return err
		}
		if err := tx.DeletePOLines(ctx, po.ID); err != nil {
			return err
		}
		inserted, err := tx.InsertPOLines(ctx, po.ID, resolved)
		if err != nil {
			return err
		}
		po.SupplierID = input.SupplierID
		po.Notes = input.Notes
		po.TotalAmount = total
		if updated, err = tx.UpdatePO(ctx, po); err != nil {
			return err
		}
		lines = inserted
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	s.recordAudit(ctx, "PO_UPDATE", updated, actorID, map[string]any{"number": updated.Number, "total": updated.TotalAmount.StringFixed(2)})
	return updated, lines, nil
}

// DeletePurchaseOrder removes an order that has not been received.
func (s *Service) DeletePurchaseOrder(ctx context.Context, companyID, actorID, id int64) error {
	var removed PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, _, err := tx.GetPOForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if po.Received {
			return ErrAlreadyReceived
		}
		if err := tx.DeletePOLines(ctx, po.ID); err != nil {
			return err
		}
		removed = po
		return tx.DeletePO(ctx, po.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_DELETE", removed, actorID, map[string]any{"number": removed.Number})
	return nil
}

// ReceivePurchaseOrder credits every line of the order to stock exactly once.
// A second receipt fails with ErrAlreadyReceived and changes nothing.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, companyID, actorID, id int64) (PurchaseOrder, []inventory.Adjustment, error) {
	var (
		received    PurchaseOrder
		adjustments []inventory.Adjustment
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, lines, err := tx.GetPOForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if po.Received {
			return ErrAlreadyReceived
		}
		if err := tx.ClaimReceipt(ctx, shared.ReceiptIdempotencyKey(po.ID)); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ErrAlreadyReceived
			}
			return err
		}
		stock := make([]inventory.Line, 0, len(lines))
		for _, line := range lines {
			stock = append(stock, inventory.Line{ItemID: line.InventoryItemID, Quantity: line.Quantity})
		}
		ref := inventory.Reference{
			CompanyID: companyID,
			Module:    stockModule,
			ID:        po.ID,
			Code:      po.Number,
			ActorID:   actorID,
		}
		if adjustments, err = s.reconciler.Receive(ctx, tx.Stock(), ref, stock); err != nil {
			return err
		}
		at := s.now()
		if err := tx.MarkReceived(ctx, po.ID, at); err != nil {
			return err
		}
		po.Received = true
		po.ReceivedAt = &at
		received = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	receipt := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PO:%d:%s", received.ID, received.Number)))
	s.recordAudit(ctx, "PO_RECEIVE", received, actorID, map[string]any{"number": received.Number, "receipt": receipt.String(), "lines": len(adjustments)})
	return received, adjustments, nil
}

// GetPurchaseOrder returns an order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, companyID, id int64) (PurchaseOrder, []POLine, error) {
	return s.repo.GetPO(ctx, companyID, id)
}

// ListPurchaseOrders returns a page of orders and the total match count.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.ListPOs(ctx, filter)
}

func (s *Service) check(input Input) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// resolveLines keeps valid lines of the company, names them after their
// inventory item and totals quantity x price.
func (s *Service) resolveLines(ctx context.Context, tx TxRepository, companyID int64, inputs []LineInput) ([]POLine, decimal.Decimal, error) {
	lines := make([]POLine, 0, len(inputs))
	priced := make([]pricing.Line, 0, len(inputs))
	for _, in := range inputs {
		if in.InventoryItemID <= 0 || in.Quantity <= 0 || in.UnitPrice.IsNegative() {
			continue
		}
		name, ok, err := tx.ItemName(ctx, companyID, in.InventoryItemID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !ok {
			continue
		}
		lines = append(lines, POLine{
			InventoryItemID: in.InventoryItemID,
			Code:            in.Code,
			Description:     name,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
		})
		priced = append(priced, pricing.Line{Quantity: in.Quantity, UnitPrice: in.UnitPrice})
	}
	if len(lines) == 0 {
		return nil, decimal.Zero, ErrEmptyOrder
	}
	return lines, pricing.Subtotal(priced), nil
}

// allocateNumber hands out PO-{company}-{seq:06d}, one past the most recent
// order, skipping numbers already taken. A malformed last number restarts the
// probe at 1.
func allocateNumber(ctx context.Context, tx TxRepository, companyID int64) (string, error) {
	if err := tx.LockNumbering(ctx, companyID); err != nil {
		return "", err
	}
	last, err := tx.LastNumber(ctx, companyID)
	if err != nil {
		return "", err
	}
	seq := int64(1)
	if numbering.IsPurchaseOrderCode(last) {
		seq = numbering.Next(last)
	}
	for i := 0; i < 100; i++ {
		number := numbering.Format(numbering.PurchaseOrderPrefix, companyID, seq)
		taken, err := tx.NumberExists(ctx, companyID, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
		seq++
	}
	return "", ErrDuplicateNumber
}

func (s *Service) recordAudit(ctx context.Context, action string, po PurchaseOrder, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: po.CompanyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "purchase_order",
		EntityID:  strconv.FormatInt(po.ID, 10),
		Meta:      meta,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit purchase order", slog.String("action", action), slog.Any("error", err))
	}
}
