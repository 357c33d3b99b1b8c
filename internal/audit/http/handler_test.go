package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type stubService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

type stubPerms struct{ perms []string }

func (s stubPerms) EffectivePermissions(ctx context.Context, companyID, userID int64) ([]string, error) {
	return s.perms, nil
}

func newRouter(svc *stubService, perms []string) http.Handler {
	h := NewHandler(nil, svc, rbac.Middleware{Service: stubPerms{perms: perms}})
	h.now = func() time.Time { return time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithActor(req.Context(), shared.Actor{UserID: 3, CompanyID: 7})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/audit", h.MountRoutes)
	return r
}

func do(h http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestTimelineRequiresPermission(t *testing.T) {
	rr := do(newRouter(&stubService{}, []string{rbac.PermDocumentsView}), "/audit/")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestTimelineDefaultsWindow(t *testing.T) {
	svc := &stubService{result: audit.Result{Rows: []audit.TimelineRow{{Action: "payment.created"}}}}
	rr := do(newRouter(svc, []string{rbac.PermAuditView}), "/audit/?entity=payment&page=2&actor_id=3")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "payment.created")

	f := svc.lastFilters
	require.Equal(t, int64(7), f.CompanyID)
	require.Equal(t, int64(3), f.ActorID)
	require.Equal(t, "payment", f.Entity)
	require.Equal(t, 2, f.Page)
	require.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), f.To)
	require.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), f.From)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newRouter(&stubService{}, []string{rbac.PermAuditView})
	for _, q := range []string{"from=2026-13-01", "from=2026-03-10&to=2026-03-01", "from=2025-01-01&to=2026-03-01", "page=0", "actor_id=x"} {
		rr := do(router, "/audit/?"+q)
		require.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestExportCSV(t *testing.T) {
	svc := &stubService{exportRows: []audit.TimelineRow{{
		At: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), ActorID: 3, Action: "document.deleted", Entity: "document", EntityID: "41",
	}}}
	rr := do(newRouter(svc, []string{rbac.PermAuditView}), "/audit/export.csv?from=2026-03-01&to=2026-03-14")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "2026-03-14T08:00:00Z,3,document.deleted,document,41,", lines[1])
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), svc.lastFilters.To)
}
