package documents

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Renderer turns a snapshot into a PDF.
type Renderer interface {
	RenderPDF(ctx context.Context, snap Snapshot) ([]byte, error)
}

// Handler wires HTTP endpoints for documents.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer Renderer
	rbac     rbac.Middleware
	mode     ParseMode
}

// NewHandler constructs the handler. renderer may be nil, disabling printing.
func NewHandler(logger *slog.Logger, service *Service, renderer Renderer, rbac rbac.Middleware, mode ParseMode) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer, rbac: rbac, mode: mode}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermDocumentsView, rbac.PermDocumentsEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/print", h.print)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermDocumentsEdit))
		r.Post("/", h.create)
		r.Post("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/convert", h.convert)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := ListFilter{CompanyID: actor.CompanyID}
	if raw := query.Get("type"); raw != "" {
		t, err := ParseType(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Type = t
	}
	if raw := query.Get("status"); raw != "" {
		s, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Status = s
	}
	page, perPage := shared.PageFromQuery(query)
	p := shared.NewPagination(page, perPage, 0)
	filter.Limit, filter.Offset = p.PerPage, p.Offset()
	docs, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"documents":  docs,
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
	doc, items, err := h.service.Get(r.Context(), actor.CompanyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"document": doc, "items": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	input, ok := h.parse(w, r)
	if !ok {
		return
	}
	doc, items, err := h.service.Create(r.Context(), actor.CompanyID, actor.UserID, input)
	if err != nil {
		h.fail(w, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"document": doc, "items": items})
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
	input, ok := h.parse(w, r)
	if !ok {
		return
	}
	doc, items, err := h.service.Update(r.Context(), actor.CompanyID, actor.UserID, id, input)
	if err != nil {
		h.fail(w, "update document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"document": doc, "items": items})
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
		h.fail(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.Convert(r.Context(), actor.CompanyID, actor.UserID, id)
	if err != nil {
		h.fail(w, "convert quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.RequireActor(w, r)
	if !ok {
		return
	}
	if h.renderer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "printing is not configured")
		return
	}
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.Snapshot(r.Context(), actor.CompanyID, id, r.URL.Query().Get("tax") != "0")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.renderer.RenderPDF(r.Context(), snap)
	if err != nil {
		h.fail(w, "render document", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+snap.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (Input, bool) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form")
		return Input{}, false
	}
	input, err := ParseForm(r.PostForm, h.mode)
	if err != nil {
		httpx.RespondError(w, err)
		return Input{}, false
	}
	return input, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	} else {
		h.logger.Warn(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
