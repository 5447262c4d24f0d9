package users

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/backend/backendtest"
	"github.com/grocerops/grocerops/internal/rbac"
)

func TestListFiltersByRoleAndSorts(t *testing.T) {
	fake := backendtest.New().On(http.MethodGet, "/api/users", func(req backend.Request) (any, error) {
		require.Equal(t, "supplier", req.Query.Get("role"))
		return []User{
			{ID: "2", Name: "Zed", Role: rbac.RoleSupplier},
			{ID: "1", Name: "Ravi", Company: "Acme Farms", Role: rbac.RoleSupplier},
		}, nil
	})
	svc := NewService(fake)

	users, err := svc.List(context.Background(), rbac.RoleSupplier)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, []string{users[0].ID, users[1].ID})

	_, err = svc.List(context.Background(), rbac.Role("root"))
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestCreateValidatesBeforeCallingBackend(t *testing.T) {
	fake := backendtest.New().Reply(http.MethodPost, "/api/users", User{ID: "9", Email: "new@example.com", Role: rbac.RoleStaff})
	svc := NewService(fake)

	_, err := svc.Create(context.Background(), CreateInput{Email: "bad"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Zero(t, fake.Called(http.MethodPost, "/api/users"))

	user, err := svc.Create(context.Background(), CreateInput{Name: "New", Email: "new@example.com", Password: "longenough", Role: rbac.RoleStaff})
	require.NoError(t, err)
	require.Equal(t, "9", user.ID)
	require.Equal(t, 1, fake.Called(http.MethodPost, "/api/users"))
}

func TestUpdateRejectsUnknownRole(t *testing.T) {
	svc := NewService(backendtest.New())
	_, err := svc.Update(context.Background(), "1", UpdateInput{Role: "owner"})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestDeleteWrapsBackendError(t *testing.T) {
	fake := backendtest.New().Fail(http.MethodDelete, "/api/users/1", http.StatusNotFound, "user not found")
	err := NewService(fake).Delete(context.Background(), "1")
	require.ErrorIs(t, err, backend.ErrNotFound)
}
