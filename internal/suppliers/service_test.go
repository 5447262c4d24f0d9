package suppliers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/backend/backendtest"
)

func newTestService(t *testing.T, api backend.Caller) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(api, client, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return svc, mr
}

func TestListSortsAndCaches(t *testing.T) {
	fake := backendtest.New().On(http.MethodGet, usersPath, func(req backend.Request) (any, error) {
		require.Equal(t, "supplier", req.Query.Get("role"))
		return []Supplier{{ID: "2", Name: "Zed", Company: "Zeta Farms"}, {ID: "1", Name: "Amy", Company: "Acme Dairy"}}, nil
	})
	svc, mr := newTestService(t, fake)

	listing, err := svc.List(context.Background())
	require.NoError(t, err)
	require.False(t, listing.Stale)
	require.Equal(t, "Acme Dairy", listing.Suppliers[0].DisplayName())
	require.True(t, mr.Exists(cacheKey))

	opts := svc.Options(context.Background())
	require.Len(t, opts, 2)
	require.Equal(t, "1", opts[0].Value)
}

func TestListFallsBackToCacheWhenBackendFails(t *testing.T) {
	healthy := true
	fake := backendtest.New().On(http.MethodGet, usersPath, func(req backend.Request) (any, error) {
		if !healthy {
			return nil, backend.ErrUnavailable
		}
		return []Supplier{{ID: "1", Name: "Amy"}}, nil
	})
	svc, _ := newTestService(t, fake)

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	healthy = false
	listing, err := svc.List(context.Background())
	require.NoError(t, err)
	require.True(t, listing.Stale)
	require.Len(t, listing.Suppliers, 1)
	require.Equal(t, 2026, listing.CachedAt.Year())
}

func TestListWithoutCacheReturnsError(t *testing.T) {
	fake := backendtest.New().Fail(http.MethodGet, usersPath, http.StatusBadGateway, "down")
	svc, _ := newTestService(t, fake)
	_, err := svc.List(context.Background())
	require.Error(t, err)
	require.Empty(t, svc.Options(context.Background()))
}

func TestListDoesNotMaskExpiredSessions(t *testing.T) {
	fail := false
	fake := backendtest.New().On(http.MethodGet, usersPath, func(backend.Request) (any, error) {
		if fail {
			return nil, backend.ErrSessionExpired
		}
		return []Supplier{{ID: "1"}}, nil
	})
	svc, _ := newTestService(t, fake)
	_, err := svc.List(context.Background())
	require.NoError(t, err)

	fail = true
	_, err = svc.List(context.Background())
	require.True(t, errors.Is(err, backend.ErrSessionExpired))
}

func TestWritesForceSupplierRoleAndDropCache(t *testing.T) {
	fake := backendtest.New().
		Reply(http.MethodGet, usersPath, []Supplier{{ID: "1"}}).
		On(http.MethodPost, usersPath, func(req backend.Request) (any, error) {
			var in Input
			require.NoError(t, backendtest.Body(req, &in))
			require.Equal(t, "supplier", in.Role)
			return Supplier{ID: "9", Name: in.Name}, nil
		}).
		Reply(http.MethodDelete, "/api/users/9", nil)
	svc, mr := newTestService(t, fake)
	_, err := svc.List(context.Background())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{Name: "Fresh Co", Email: "fresh@example.com"})
	require.ErrorIs(t, err, ErrPasswordRequired)

	sup, err := svc.Create(context.Background(), Input{Name: "Fresh Co", Email: "fresh@example.com", Password: "longenough"})
	require.NoError(t, err)
	require.Equal(t, "9", sup.ID)
	require.False(t, mr.Exists(cacheKey))

	require.NoError(t, svc.Delete(context.Background(), "9"))
}

func TestGetRejectsOtherRoles(t *testing.T) {
	fake := backendtest.New().Reply(http.MethodGet, "/api/users/7", Supplier{ID: "7", Role: "staff"})
	svc, _ := newTestService(t, fake)
	_, err := svc.Get(context.Background(), "7")
	require.ErrorIs(t, err, ErrNotSupplier)
}
