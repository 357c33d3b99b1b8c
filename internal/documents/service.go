package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/companies"
	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// codeAttempts bounds retries of a transaction whose generated code collided.
const codeAttempts = 3

const stockModule = "documents"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Document, []Item, error)
	List(ctx context.Context, filter ListFilter) ([]Document, int, error)
	ItemNames(ctx context.Context, companyID int64, ids []int64) (map[int64]string, error)
	MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error)
}

// SettingsPort supplies the company tax configuration.
type SettingsPort interface {
	Settings(ctx context.Context, companyID int64) (companies.Company, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Observer is notified of committed lifecycle operations.
type Observer interface {
	ObserveDocumentOperation(operation, docType string)
}

// Service orchestrates the document lifecycle.
type Service struct {
	repo       RepositoryPort
	settings   SettingsPort
	reconciler *inventory.Reconciler
	audit      AuditPort
	observer   Observer
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

// NewService constructs the service. audit and observer may be nil.
func NewService(repo RepositoryPort, settings SettingsPort, reconciler *inventory.Reconciler, audit AuditPort, observer Observer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reconciler == nil {
		reconciler = inventory.NewReconciler(logger, nil)
	}
	return &Service{
		repo:       repo,
		settings:   settings,
		reconciler: reconciler,
		audit:      audit,
		observer:   observer,
		logger:     logger,
		validate:   validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create allocates a code when none is given, persists the document and its
// lines, consumes stock for invoices and records a payment for documents
// created as paid. Nothing is persisted when any step fails.
func (s *Service) Create(ctx context.Context, companyID, actorID int64, input Input) (Document, []Item, error) {
	if input.Type == "" {
		return Document{}, nil, fmt.Errorf("%w: document type is required", ErrValidation)
	}
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if !validInitial(input.Type, input.Status) {
		return Document{}, nil, fmt.Errorf("%w: a %s cannot be created as %s", ErrValidation, input.Type, input.Status)
	}
	total, err := s.price(ctx, companyID, input)
	if err != nil {
		return Document{}, nil, err
	}
	if input.IssuedDate.IsZero() {
		input.IssuedDate = s.today()
	}
	input.Code = strings.TrimSpace(input.Code)

	var (
		doc   Document
		items []Item
	)
	err = s.retryCode(ctx, input.Code == "", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			code := input.Code
			if code == "" {
				var err error
				if code, err = allocateCode(ctx, tx, companyID, input.Type); err != nil {
					return err
				}
			} else if err := ensureFree(ctx, tx, companyID, input.Type, code, 0); err != nil {
				return err
			}
			created, err := tx.InsertDocument(ctx, Document{
				CompanyID:   companyID,
				Code:        code,
				Type:        input.Type,
				ClientID:    input.ClientID,
				CreatedBy:   actorID,
				Status:      input.Status,
				IssuedDate:  input.IssuedDate,
				DueDate:     input.DueDate,
				TotalAmount: total,
				Notes:       input.Notes,
			})
			if err != nil {
				return err
			}
			inserted, err := tx.InsertItems(ctx, created.ID, specItems(input.Lines))
			if err != nil {
				return err
			}
			if created.Type.ConsumesStock() {
				if _, err := s.reconciler.Apply(ctx, tx.Stock(), s.stockRef(created, actorID), stockLines(inserted)); err != nil {
					return err
				}
			} else if err := verifyItems(ctx, tx.Stock(), companyID, inserted); err != nil {
				return err
			}
			if created.Status == StatusPaid {
				if err := tx.InsertPayment(ctx, paidOnCreate(created, actorID)); err != nil {
					return err
				}
			}
			doc, items = created, inserted
			return nil
		})
	})
	if err != nil {
		return Document{}, nil, err
	}
	s.committed(ctx, "create", doc, actorID, map[string]any{"code": doc.Code, "total": doc.TotalAmount.String()})
	return doc, items, nil
}

// Update replaces the header and every line of a document. Stock consumed by
// the previous lines is restored before the new lines are consumed, and the
// new consumption fails when an item is short. The code is re-resolved when
// the type changes or no code is supplied.
func (s *Service) Update(ctx context.Context, companyID, actorID, id int64, input Input) (Document, []Item, error) {
	total, err := s.price(ctx, companyID, input)
	if err != nil {
		return Document{}, nil, err
	}
	input.Code = strings.TrimSpace(input.Code)

	var (
		doc   Document
		items []Item
	)
	err = s.retryCode(ctx, input.Code == "", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			current, oldItems, err := tx.GetForUpdate(ctx, companyID, id)
			if err != nil {
				return err
			}
			if current.Status == StatusConverted {
				return ErrAlreadyConverted
			}
			next := current
			if input.Type != "" {
				next.Type = input.Type
			}
			if input.Status != "" {
				if input.Status == StatusConverted || !current.Status.CanTransition(input.Status) {
					return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, current.Status, input.Status)
				}
				next.Status = input.Status
			}
			if next.Code, err = s.resolveCode(ctx, tx, current, next.Type, input.Code); err != nil {
				return err
			}
			next.ClientID = input.ClientID
			next.DueDate = input.DueDate
			next.Notes = input.Notes
			if !input.IssuedDate.IsZero() {
				next.IssuedDate = input.IssuedDate
			}
			next.TotalAmount = total

			if current.Type.ConsumesStock() {
				if _, err := s.reconciler.Reverse(ctx, tx.Stock(), s.stockRef(current, actorID), stockLines(oldItems)); err != nil {
					return err
				}
			}
			if err := tx.DeleteItems(ctx, current.ID); err != nil {
				return err
			}
			inserted, err := tx.InsertItems(ctx, current.ID, specItems(input.Lines))
			if err != nil {
				return err
			}
			if next.Type.ConsumesStock() {
				if _, err := s.reconciler.ApplyStrict(ctx, tx.Stock(), s.stockRef(next, actorID), stockLines(inserted)); err != nil {
					return err
				}
			} else if err := verifyItems(ctx, tx.Stock(), companyID, inserted); err != nil {
				return err
			}
			updated, err := tx.UpdateDocument(ctx, next)
			if err != nil {
				return err
			}
			doc, items = updated, inserted
			return nil
		})
	})
	if err != nil {
		return Document{}, nil, err
	}
	s.committed(ctx, "update", doc, actorID, map[string]any{"code": doc.Code, "total": doc.TotalAmount.String()})
	return doc, items, nil
}

// Delete restores stock consumed by an invoice, removes its lines and then the
// document itself.
func (s *Service) Delete(ctx context.Context, companyID, actorID, id int64) error {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, items, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Type.ConsumesStock() {
			if _, err := s.reconciler.Reverse(ctx, tx.Stock(), s.stockRef(current, actorID), stockLines(items)); err != nil {
				return err
			}
		}
		if err := tx.DeleteItems(ctx, current.ID); err != nil {
			return err
		}
		if err := tx.DeleteDocument(ctx, current.ID); err != nil {
			return err
		}
		doc = current
		return nil
	})
	if err != nil {
		return err
	}
	s.committed(ctx, "delete", doc, actorID, map[string]any{"code": doc.Code})
	return nil
}

// Convert turns a quote into a new draft invoice carrying the quote's client,
// due date, total and lines, consumes stock for the invoice and marks the
// quote converted. A quote converts at most once.
func (s *Service) Convert(ctx context.Context, companyID, actorID, quoteID int64) (Document, error) {
	var invoice Document
	err := s.retryCode(ctx, true, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			quote, items, err := tx.GetForUpdate(ctx, companyID, quoteID)
			if err != nil {
				return err
			}
			if quote.Type != TypeQuote {
				return fmt.Errorf("%w: only quotes can be converted", ErrValidation)
			}
			if quote.Status == StatusConverted {
				return ErrAlreadyConverted
			}
			if !quote.Status.CanTransition(StatusConverted) {
				return fmt.Errorf("%w: %s quote cannot be converted", ErrInvalidStatus, quote.Status)
			}
			code, err := allocateCode(ctx, tx, companyID, TypeInvoice)
			if err != nil {
				return err
			}
			created, err := tx.InsertDocument(ctx, Document{
				CompanyID:   companyID,
				Code:        code,
				Type:        TypeInvoice,
				ClientID:    quote.ClientID,
				CreatedBy:   actorID,
				Status:      StatusDraft,
				IssuedDate:  s.today(),
				DueDate:     quote.DueDate,
				TotalAmount: quote.TotalAmount,
				Notes:       quote.Notes,
			})
			if err != nil {
				return err
			}
			copied := make([]Item, len(items))
			for i, item := range items {
				item.ID = 0
				copied[i] = item
			}
			inserted, err := tx.InsertItems(ctx, created.ID, copied)
			if err != nil {
				return err
			}
			if _, err := s.reconciler.Apply(ctx, tx.Stock(), s.stockRef(created, actorID), stockLines(inserted)); err != nil {
				return err
			}
			if err := tx.UpdateStatus(ctx, quote.ID, StatusConverted); err != nil {
				return err
			}
			invoice = created
			return nil
		})
	})
	if err != nil {
		return Document{}, err
	}
	s.committed(ctx, "convert", invoice, actorID, map[string]any{"code": invoice.Code, "quote_id": quoteID})
	return invoice, nil
}

// Get returns a document with its items.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Document, []Item, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns a page of documents and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// MarkOverdue flips sent, issued and partial invoices due before asOf.
func (s *Service) MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, companyID, asOf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("invoices marked overdue", slog.Int64("company_id", companyID), slog.Int64("count", n))
	}
	return n, nil
}

// Snapshot returns a detached, print ready copy of a document. The tax
// breakdown is derived back from the stored total using the company rate.
func (s *Service) Snapshot(ctx context.Context, companyID, id int64, includeTax bool) (Snapshot, error) {
	doc, items, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Snapshot{}, err
	}
	company, err := s.settings.Settings(ctx, companyID)
	if err != nil {
		return Snapshot{}, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.InventoryItemID != 0 {
			ids = append(ids, item.InventoryItemID)
		}
	}
	names, err := s.repo.ItemNames(ctx, companyID, ids)
	if err != nil {
		return Snapshot{}, err
	}
	lines := make([]SnapshotLine, 0, len(items))
	for _, item := range items {
		line := SnapshotLine{
			Code:      "ART-" + strconv.FormatInt(item.ID, 10),
			Name:      item.Description,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Net:       pricing.RoundCents(item.PricingLine().Net()),
		}
		if item.InventoryItemID != 0 {
			line.Code = strconv.FormatInt(item.InventoryItemID, 10)
			if name, ok := names[item.InventoryItemID]; ok {
				line.Name = name
			}
		}
		lines = append(lines, line)
	}
	return Snapshot{
		Document:       doc,
		Lines:          lines,
		CurrencySymbol: company.CurrencySymbol,
		Breakdown:      pricing.Reverse(doc.TotalAmount, company.TaxRate, includeTax),
	}, nil
}

// price validates input and returns the taxed total under the company rate.
func (s *Service) price(ctx context.Context, companyID int64, input Input) (decimal.Decimal, error) {
	if input.Type != "" {
		if _, err := ParseType(string(input.Type)); err != nil {
			return decimal.Zero, err
		}
	}
	if len(input.Lines) == 0 {
		return decimal.Zero, ErrEmptyDocument
	}
	if err := s.validate.Struct(input); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	company, err := s.settings.Settings(ctx, companyID)
	if err != nil {
		return decimal.Zero, err
	}
	lines := make([]pricing.Line, len(input.Lines))
	for i, spec := range input.Lines {
		lines[i] = spec.pricingLine()
	}
	_, total, err := pricing.Total(lines, company.TaxRate)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// resolveCode picks the code of an updated document.
func (s *Service) resolveCode(ctx context.Context, tx TxRepository, current Document, nextType Type, requested string) (string, error) {
	switch {
	case nextType != current.Type && (requested == "" || requested == current.Code):
		return rebaseCode(ctx, tx, current.CompanyID, current.ID, current.Code, nextType)
	case requested == "":
		return current.Code, nil
	case requested == current.Code:
		return requested, nil
	}
	if err := ensureFree(ctx, tx, current.CompanyID, nextType, requested, current.ID); err != nil {
		return "", err
	}
	return requested, nil
}

func (s *Service) retryCode(ctx context.Context, generated bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= codeAttempts; attempt++ {
		err = fn()
		if !generated || !errors.Is(err, ErrDuplicateCode) {
			return err
		}
		s.logger.WarnContext(ctx, "generated document code collided, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	return err
}

func (s *Service) stockRef(doc Document, actorID int64) inventory.Reference {
	return inventory.Reference{CompanyID: doc.CompanyID, Module: stockModule, ID: doc.ID, Code: doc.Code, ActorID: actorID}
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) committed(ctx context.Context, operation string, doc Document, actorID int64, meta map[string]any) {
	if s.observer != nil {
		s.observer.ObserveDocumentOperation(operation, string(doc.Type))
	}
	s.logger.InfoContext(ctx, "document "+operation,
		slog.Int64("company_id", doc.CompanyID),
		slog.Int64("document_id", doc.ID),
		slog.String("type", string(doc.Type)))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: doc.CompanyID,
		ActorID:   actorID,
		Action:    "documents:" + operation,
		Entity:    string(doc.Type),
		EntityID:  strconv.FormatInt(doc.ID, 10),
		Meta:      meta,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit document "+operation, slog.Any("error", err))
	}
}

func ensureFree(ctx context.Context, store SequenceStore, companyID int64, t Type, code string, excludeID int64) error {
	taken, err := store.CodeExists(ctx, companyID, t, code, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}
	return nil
}

// verifyItems checks that lines of documents which do not move stock still
// reference items of the company.
func verifyItems(ctx context.Context, store inventory.Store, companyID int64, items []Item) error {
	seen := map[int64]bool{}
	for _, item := range items {
		if item.InventoryItemID == 0 || seen[item.InventoryItemID] {
			continue
		}
		seen[item.InventoryItemID] = true
		if _, err := store.GetItemForUpdate(ctx, companyID, item.InventoryItemID); err != nil {
			return err
		}
	}
	return nil
}

func specItems(specs []LineSpec) []Item {
	items := make([]Item, len(specs))
	for i, spec := range specs {
		items[i] = spec.item(0)
	}
	return items
}

var paidNamespace = uuid.MustParse("6f1d9a52-3c4b-4e08-9a57-2b8d0c3e7f41")

func paidOnCreate(doc Document, actorID int64) Payment {
	return Payment{
		CompanyID:  doc.CompanyID,
		DocumentID: doc.ID,
		Amount:     doc.TotalAmount,
		Date:       doc.IssuedDate,
		Method:     "cash",
		Notes:      "Auto-generated",
		Reference:  uuid.NewSHA1(paidNamespace, []byte(fmt.Sprintf("%d:%d", doc.CompanyID, doc.ID))).String(),
		CreatedBy:  actorID,
	}
}
