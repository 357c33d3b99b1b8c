package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/pricing"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler wires HTTP endpoints for payments.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPaymentsView, rbac.PermPaymentsEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPaymentsEdit))
		r.Post("/", h.create)
		r.Post("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	documentID, _ := strconv.ParseInt(query.Get("document_id"), 10, 64)
	page, perPage := shared.PageFromQuery(query)
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := h.service.List(r.Context(), ListFilter{
		CompanyID:  actor.CompanyID,
		DocumentID: documentID,
		Limit:      p.PerPage,
		Offset:     p.Offset(),
	})
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"payments":   items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), actor.CompanyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	input, err := parseInput(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), actor.CompanyID, actor.UserID, input)
	if err != nil {
		h.logger.Warn("create payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := parseInput(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), actor.CompanyID, actor.UserID, id, input)
	if err != nil {
		h.logger.Warn("update payment", slog.Any("error", err), slog.Int64("payment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor.CompanyID, actor.UserID, id); err != nil {
		h.logger.Warn("delete payment", slog.Any("error", err), slog.Int64("payment_id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseInput(r *http.Request) (Input, error) {
	if err := r.ParseForm(); err != nil {
		return Input{}, ErrValidation
	}
	amount, err := pricing.ParseAmount(r.PostFormValue("amount"))
	if err != nil {
		return Input{}, err
	}
	method, err := ParseMethod(r.PostFormValue("method"))
	if err != nil {
		return Input{}, err
	}
	var documentID int64
	if raw := strings.TrimSpace(r.PostFormValue("document_id")); raw != "" {
		if documentID, err = strconv.ParseInt(raw, 10, 64); err != nil || documentID < 0 {
			return Input{}, ErrValidation
		}
	}
	var date time.Time
	if raw := strings.TrimSpace(r.PostFormValue("payment_date")); raw != "" {
		if date, err = time.Parse("2006-01-02", raw); err != nil {
			return Input{}, ErrValidation
		}
	}
	return Input{
		DocumentID:  documentID,
		Amount:      amount,
		PaymentDate: date,
		Method:      method,
		Notes:       strings.TrimSpace(r.PostFormValue("notes")),
	}, nil
}
