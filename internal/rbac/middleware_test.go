package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/shared"
)

func requestAs(t *testing.T, role Role) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	manager := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	if role != "" {
		sess.SignIn(shared.Principal{ID: "u1", Role: string(role)}, "a", "r")
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func TestRequireAnyByRole(t *testing.T) {
	m := Middleware{Service: NewService()}
	cases := []struct {
		role   Role
		status int
	}{
		{RoleAdmin, http.StatusNoContent},
		{RoleStaff, http.StatusNoContent},
		{RoleSupplier, http.StatusForbidden},
		{RoleUser, http.StatusForbidden},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		m.RequireAny(PermInventoryView)(okHandler()).ServeHTTP(rr, requestAs(t, tc.role))
		require.Equal(t, tc.status, rr.Code, string(tc.role))
	}
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	m := Middleware{Service: NewService()}
	rr := httptest.NewRecorder()
	m.RequireAll(PermInventoryView, PermUsersEdit)(okHandler()).ServeHTTP(rr, requestAs(t, RoleStaff))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	m.RequireAll(PermInventoryView, PermUsersEdit)(okHandler()).ServeHTTP(rr, requestAs(t, RoleAdmin))
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAnonymousPageRequestRedirectsToLogin(t *testing.T) {
	m := Middleware{Service: NewService()}
	req := requestAs(t, "")
	req.Header.Set("Accept", "text/html")
	rr := httptest.NewRecorder()
	m.RequireLogin()(okHandler()).ServeHTTP(rr, req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, LoginPath, rr.Header().Get("Location"))
}

func TestEffectivePermissionsSorted(t *testing.T) {
	perms := NewService().EffectivePermissions(RoleSupplier)
	require.Equal(t, []string{PermAnnouncementsView, PermDashboardView, PermPaymentsView, PermSupplierOrders}, perms)
	require.True(t, RoleRetailer.Valid())
	require.False(t, Role("guest").Valid())
}
