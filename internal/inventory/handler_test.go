package inventory

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

func newTestRouter(t *testing.T, svc *Service, role string) http.Handler {
	t.Helper()
	logger := slog.Default()
	pages := &view.Renderer{CSRF: shared.NewCSRFManager("secret"), RBAC: rbac.NewService(), Logger: logger}
	h := NewHandler(logger, svc, pages, rbac.Middleware{Service: rbac.NewService(), Logger: logger}, 15*time.Second)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{ID: "test"}
			sess.SignIn(shared.Principal{ID: "u1", Email: "staff@example.com", Role: role}, "a", "r")
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/inventory", h.MountRoutes)
	return r
}

func TestAlertsFeedReturnsSnapshotAlerts(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	router := newTestRouter(t, svc, "staff")

	req := httptest.NewRequest(http.MethodGet, "/inventory/alerts.json", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var feed alertsFeed
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &feed))
	require.Len(t, feed.Alerts, 5)
	require.Len(t, feed.Open, 5)
	require.Equal(t, 1, feed.Counts.OutOfStock)
}

func TestAcknowledgeJSON(t *testing.T) {
	svc, repo, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	_, err := svc.Scan(context.Background())
	require.NoError(t, err)
	router := newTestRouter(t, svc, "staff")

	req := httptest.NewRequest(http.MethodPost, "/inventory/alerts/2/ack", nil)
	req.Header.Set("Accept", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "staff@example.com", repo.rows[1].AcknowledgedBy)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestAcknowledgeForbiddenForSuppliers(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	router := newTestRouter(t, svc, "supplier")

	req := httptest.NewRequest(http.MethodPost, "/inventory/alerts/1/ack", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestExportCSV(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	router := newTestRouter(t, svc, "admin")

	req := httptest.NewRequest(http.MethodGet, "/inventory/export.csv?status=low_stock", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Header().Get("Content-Disposition"), "inventory-20260510.csv")
	body := res.Body.String()
	require.Contains(t, body, "sku,name,category,on_hand")
	require.Contains(t, body, ",Bread,")
	require.NotContains(t, body, ",Rice,")
}

func TestRescanInlineRecordsAlerts(t *testing.T) {
	svc, repo, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	router := newTestRouter(t, svc, "staff")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/inventory/rescan", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/inventory", res.Header().Get("Location"))
	require.Len(t, repo.rows, 5)
}

func TestRescanUsesQueueWhenConfigured(t *testing.T) {
	svc, repo, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	logger := slog.Default()
	pages := &view.Renderer{CSRF: shared.NewCSRFManager("secret"), RBAC: rbac.NewService(), Logger: logger}
	var reasons []string
	h := NewHandler(logger, svc, pages, rbac.Middleware{Service: rbac.NewService(), Logger: logger}, 15*time.Second).
		WithRescan(func(_ context.Context, reason string) error {
			reasons = append(reasons, reason)
			return nil
		})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{ID: "test"}
			sess.SignIn(shared.Principal{ID: "u1", Role: "admin"}, "a", "r")
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/inventory", h.MountRoutes)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/inventory/rescan", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, []string{"manual:u1"}, reasons)
	require.Empty(t, repo.rows)
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (m *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return nil
}

func TestAcknowledgeAndRescanAreAudited(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	_, err := svc.Scan(context.Background())
	require.NoError(t, err)
	audit := &memoryAudit{}
	logger := slog.Default()
	pages := &view.Renderer{CSRF: shared.NewCSRFManager("secret"), RBAC: rbac.NewService(), Logger: logger}
	h := NewHandler(logger, svc, pages, rbac.Middleware{Service: rbac.NewService(), Logger: logger}, 15*time.Second).WithAudit(audit)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{ID: "test"}
			sess.SignIn(shared.Principal{ID: "u1", Email: "admin@example.com", Role: "admin"}, "a", "r")
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/inventory", h.MountRoutes)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/inventory/alerts/3/ack", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)

	// a second acknowledgement fails and is not recorded
	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/inventory/alerts/3/ack", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)

	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/inventory/rescan", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)

	require.Len(t, audit.entries, 2)
	require.Equal(t, "alert.acknowledge", audit.entries[0].Action)
	require.Equal(t, "inventory_alert", audit.entries[0].Entity)
	require.Equal(t, "3", audit.entries[0].EntityID)
	require.Equal(t, "u1", audit.entries[0].ActorID)
	require.Equal(t, "inventory.rescan", audit.entries[1].Action)
}
