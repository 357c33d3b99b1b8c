package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Payment, int, error)
}

// TxRepository exposes payment writes together with the document view the
// reconciler needs, inside one transaction.
type TxRepository interface {
	DocumentStore
	GetForUpdate(ctx context.Context, companyID, id int64) (Payment, error)
	Insert(ctx context.Context, payment Payment) (Payment, error)
	Update(ctx context.Context, payment Payment) (Payment, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records payments and reconciles the documents they touch.
type Service struct {
	repo       RepositoryPort
	reconciler *Reconciler
	audit      AuditPort
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

// NewService constructs the service. audit may be nil.
func NewService(repo RepositoryPort, reconciler *Reconciler, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reconciler == nil {
		reconciler = NewReconciler(logger, nil)
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

// Create records a payment and reconciles its document.
func (s *Service) Create(ctx context.Context, companyID, actorID int64, input Input) (Payment, error) {
	if err := s.check(&input); err != nil {
		return Payment{}, err
	}
	var created Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.DocumentID != 0 {
			if _, err := tx.LockDocument(ctx, companyID, input.DocumentID); err != nil {
				return err
			}
		}
		p, err := tx.Insert(ctx, Payment{
			CompanyID:   companyID,
			DocumentID:  input.DocumentID,
			Amount:      input.Amount,
			PaymentDate: input.PaymentDate,
			Method:      input.Method,
			Notes:       input.Notes,
			Reference:   uuid.NewString(),
			CreatedBy:   actorID,
		})
		if err != nil {
			return err
		}
		if _, err := s.reconciler.Reconcile(ctx, tx, companyID, p.DocumentID); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, "create", created, actorID)
	return created, nil
}

// Update changes a payment and reconciles both the document it left and the
// one it now belongs to.
func (s *Service) Update(ctx context.Context, companyID, actorID, id int64, input Input) (Payment, error) {
	if err := s.check(&input); err != nil {
		return Payment{}, err
	}
	var updated Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		affected := affectedDocuments(current.DocumentID, input.DocumentID)
		for _, docID := range affected {
			if _, err := tx.LockDocument(ctx, companyID, docID); err != nil {
				return err
			}
		}
		next := current
		next.DocumentID = input.DocumentID
		next.Amount = input.Amount
		next.PaymentDate = input.PaymentDate
		next.Method = input.Method
		next.Notes = input.Notes
		p, err := tx.Update(ctx, next)
		if err != nil {
			return err
		}
		for _, docID := range affected {
			if _, err := s.reconciler.Reconcile(ctx, tx, companyID, docID); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, "update", updated, actorID)
	return updated, nil
}

// Delete removes a payment and reconciles its document.
func (s *Service) Delete(ctx context.Context, companyID, actorID, id int64) error {
	var removed Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, current.ID); err != nil {
			return err
		}
		if _, err := s.reconciler.Reconcile(ctx, tx, companyID, current.DocumentID); err != nil {
			return err
		}
		removed = current
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "delete", removed, actorID)
	return nil
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Payment, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns a page of payments and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Payment, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) check(input *Input) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if !input.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	input.Amount = pricing.RoundCents(input.Amount)
	if input.PaymentDate.IsZero() {
		now := s.now()
		input.PaymentDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, p Payment, actorID int64) {
	s.logger.InfoContext(ctx, "payment "+action,
		slog.Int64("company_id", p.CompanyID),
		slog.Int64("payment_id", p.ID),
		slog.Int64("document_id", p.DocumentID))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: p.CompanyID,
		ActorID:   actorID,
		Action:    "payments:" + action,
		Entity:    "payment",
		EntityID:  strconv.FormatInt(p.ID, 10),
		Meta:      map[string]any{"amount": p.Amount.StringFixed(2), "document_id": p.DocumentID},
	}); err != nil {
		s.logger.WarnContext(ctx, "audit payment "+action, slog.Any("error", err))
	}
}

// affectedDocuments lists the distinct non-zero ids in ascending order so rows
// are always locked in the same order.
func affectedDocuments(ids ...int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
