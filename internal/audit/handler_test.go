package audit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

type filterRecorder struct {
	memoryStore
	last Filters
}

func (f *filterRecorder) Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error) {
	f.last = filters
	return f.memoryStore.Window(ctx, filters, offset, limit)
}

func (f *filterRecorder) All(ctx context.Context, filters Filters) ([]Entry, error) {
	f.last = filters
	return f.memoryStore.All(ctx, filters)
}

func newTestRouter(t *testing.T, store Store, role string) http.Handler {
	t.Helper()
	logger := slog.Default()
	pages := &view.Renderer{CSRF: shared.NewCSRFManager("secret"), RBAC: rbac.NewService(), Logger: logger}
	h := NewHandler(logger, NewService(store), pages, rbac.Middleware{Service: rbac.NewService(), Logger: logger})
	h.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{ID: "test"}
			sess.SignIn(shared.Principal{ID: "u1", Email: "admin@example.com", Role: role}, "a", "r")
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/audit", h.MountRoutes)
	return r
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	store := &filterRecorder{}
	router := newTestRouter(t, store, "admin")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), store.last.From)
	require.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), store.last.To)
}

func TestTimelineRejectsInvalidRange(t *testing.T) {
	store := &filterRecorder{}
	router := newTestRouter(t, store, "admin")

	for _, query := range []string{"from=2026-05-10&to=2026-05-01", "from=2025-01-01&to=2026-05-01", "from=yesterday"} {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/audit?"+query, nil))
		require.Equal(t, http.StatusBadRequest, res.Code, query)
	}
	require.True(t, store.last.From.IsZero())
}

func TestTimelineForbiddenForStaff(t *testing.T) {
	router := newTestRouter(t, &filterRecorder{}, "staff")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestExportCSVPassesFilters(t *testing.T) {
	store := &filterRecorder{memoryStore: memoryStore{entries: seedEntries(2)}}
	router := newTestRouter(t, store, "admin")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/audit/export.csv?from=2026-05-01&to=2026-05-09&entity=product&action=product.", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Header().Get("Content-Disposition"), "activity-20260510.csv")
	require.Equal(t, "product", store.last.Entity)
	require.Equal(t, "product.", store.last.Action)
	require.Contains(t, res.Body.String(), "product.update")
}

func TestExportCSVRedirectsOnBadFilters(t *testing.T) {
	router := newTestRouter(t, &filterRecorder{}, "admin")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/audit/export.csv?to=soon", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/audit", res.Header().Get("Location"))
}
