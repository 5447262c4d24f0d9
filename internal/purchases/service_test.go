package purchases

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/backend/backendtest"
	"github.com/grocerops/grocerops/internal/products"
)

var catalogue = []products.Product{
	{ID: "p1", Name: "Milk", Price: decimal.RequireFromString("1.25"), Quantity: 10},
	{ID: "p2", Name: "Bread", Price: decimal.RequireFromString("2.00"), Quantity: 2},
}

func TestBuildCartPricesLines(t *testing.T) {
	cart, err := BuildCart(catalogue, map[string]int64{"p1": 4, "p2": 1, "p3": 0})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	require.Equal(t, "p1", cart.Items[0].Product)
	require.True(t, cart.TotalAmount.Equal(decimal.RequireFromString("7.00")))
}

func TestBuildCartRejectsOverselling(t *testing.T) {
	_, err := BuildCart(catalogue, map[string]int64{"p2": 3})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Contains(t, err.Error(), "only 2 Bread left")

	_, err = BuildCart(catalogue, map[string]int64{"ghost": 1})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = BuildCart(catalogue, map[string]int64{"p1": 0})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateAndMine(t *testing.T) {
	now := time.Now()
	fake := backendtest.New().
		On(http.MethodPost, "/api/purchases", func(req backend.Request) (any, error) {
			var cart Cart
			require.NoError(t, backendtest.Body(req, &cart))
			require.Len(t, cart.Items, 1)
			return Purchase{ID: "pu1", Status: "created", PaymentStatus: "pending"}, nil
		}).
		Reply(http.MethodGet, "/api/purchases/my", []Purchase{
			{ID: "a", CreatedAt: now.Add(-time.Hour)},
			{ID: "b", CreatedAt: now, PaymentStatus: "paid"},
		})
	svc := NewService(fake)

	_, err := svc.Create(context.Background(), Cart{})
	require.ErrorIs(t, err, ErrEmptyCart)

	cart, err := BuildCart(catalogue, map[string]int64{"p1": 1})
	require.NoError(t, err)
	p, err := svc.Create(context.Background(), cart)
	require.NoError(t, err)
	require.Equal(t, "pu1", p.ID)
	require.False(t, p.Paid())

	mine, err := svc.Mine(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", mine[0].ID)
	require.True(t, mine[0].Paid())
}
