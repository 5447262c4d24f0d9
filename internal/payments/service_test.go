package payments

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/backend/backendtest"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateOrderRejectsNonPositiveAmounts(t *testing.T) {
	fake := backendtest.New()
	svc := NewService(fake)
	_, err := svc.CreateOrder(context.Background(), "pu1", decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Empty(t, fake.Calls())
}

func TestCreateOrderAndVerify(t *testing.T) {
	fake := backendtest.New().
		On(http.MethodPost, "/api/payments/create-order", func(req backend.Request) (any, error) {
			var body struct {
				PurchaseID string          `json:"purchaseId"`
				Amount     decimal.Decimal `json:"amount"`
			}
			require.NoError(t, backendtest.Body(req, &body))
			require.Equal(t, "pu1", body.PurchaseID)
			require.True(t, body.Amount.Equal(d("12.50")))
			return Order{OrderID: "order_1", Amount: body.Amount, Currency: "INR"}, nil
		}).
		Reply(http.MethodPost, "/api/payments/verify", Payment{PaymentID: "pay_1", Status: StatusCompleted})
	svc := NewService(fake)

	order, err := svc.CreateOrder(context.Background(), "pu1", d("12.50"))
	require.NoError(t, err)
	require.Equal(t, "order_1", order.OrderID)

	_, err = svc.Verify(context.Background(), Verification{OrderID: "order_1"})
	require.Error(t, err)
	require.Zero(t, fake.Called(http.MethodPost, "/api/payments/verify"))

	p, err := svc.Verify(context.Background(), Verification{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	require.NoError(t, err)
	require.Equal(t, "pay_1", p.PaymentID)
}

func TestVerifySurfacesSignatureRejection(t *testing.T) {
	fake := backendtest.New().Fail(http.MethodPost, "/api/payments/verify", http.StatusBadRequest, "invalid signature")
	_, err := NewService(fake).Verify(context.Background(), Verification{OrderID: "o", PaymentID: "p", Signature: "bad"})
	require.ErrorIs(t, err, backend.ErrValidation)
}

var ledger = []Transaction{
	{ID: "1", Type: TypeSale, Amount: d("100"), Status: StatusCompleted, CreatedAt: time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)},
	{ID: "2", Type: TypeSale, Amount: d("40"), Status: StatusPending, CreatedAt: time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)},
	{ID: "3", Type: TypeRefund, Amount: d("15"), Status: StatusCompleted, CreatedAt: time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)},
	{ID: "4", Type: TypeSale, Amount: d("60.25"), Status: StatusCompleted, CreatedAt: time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC)},
	{ID: "5", Type: TypeSale, Amount: d("999"), Status: StatusCompleted, CreatedAt: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)},
}

func TestRevenueCountsCompletedSalesOnly(t *testing.T) {
	require.True(t, Revenue(ledger).Equal(d("1159.25")))
}

func TestRevenueByMonth(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	months := RevenueByMonth(ledger, 3, now)
	require.Len(t, months, 3)
	require.Equal(t, "Aug", months[0].Label())
	require.True(t, months[0].Total.Equal(d("100")))
	require.True(t, months[1].Total.IsZero())
	require.Equal(t, "Oct", months[2].Label())
	require.True(t, months[2].Total.Equal(d("60.25")))
	require.Nil(t, RevenueByMonth(ledger, 0, now))
}

func TestFilterTransactions(t *testing.T) {
	out := FilterTransactions(ledger, TransactionFilter{Type: TypeSale, Status: StatusCompleted, From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.Len(t, out, 2)
	require.Equal(t, "4", out[0].ID)
	require.Equal(t, "1", out[1].ID)
}

func TestWriteTransactionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTransactionsCSV(&buf, ledger[:1]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "date,type,reference,amount,method,status", lines[0])
	require.Equal(t, "2026-08-03T10:00:00Z,sale,,100.00,,completed", lines[1])
}
