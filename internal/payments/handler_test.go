package payments

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/backend/backendtest"
	"github.com/grocerops/grocerops/internal/purchases"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

type stubPurchases map[string]purchases.Purchase

func (s stubPurchases) Get(_ context.Context, id string) (purchases.Purchase, error) {
	p, ok := s[id]
	if !ok {
		return purchases.Purchase{}, backend.ErrNotFound
	}
	return p, nil
}

func newCheckoutRouter(t *testing.T, fake *backendtest.Fake, lookup PurchaseLookup, sess *shared.Session) http.Handler {
	t.Helper()
	logger := slog.Default()
	pages := &view.Renderer{CSRF: shared.NewCSRFManager("secret"), RBAC: rbac.NewService(), Logger: logger}
	h := NewHandler(logger, NewService(fake), pages, rbac.Middleware{Service: rbac.NewService(), Logger: logger}, lookup, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/payments", h.MountRoutes)
	return r
}

func TestCheckoutReusesOpenGatewayOrder(t *testing.T) {
	orders := 0
	fake := backendtest.New().
		On(http.MethodPost, "/api/payments/create-order", func(req backend.Request) (any, error) {
			var body struct {
				Amount decimal.Decimal `json:"amount"`
			}
			require.NoError(t, backendtest.Body(req, &body))
			orders++
			return Order{OrderID: fmt.Sprintf("order_%d", orders), Amount: body.Amount, Currency: "INR"}, nil
		}).
		Reply(http.MethodPost, "/api/payments/verify", Payment{PaymentID: "pay_1", Status: StatusCompleted})
	lookup := stubPurchases{"pu1": {ID: "pu1", TotalAmount: d("12.50"), PaymentStatus: "pending"}}
	sess := &shared.Session{ID: "test"}
	sess.SignIn(shared.Principal{ID: "u1", Role: "user"}, "a", "r")
	router := newCheckoutRouter(t, fake, lookup, sess)

	for i := 0; i < 3; i++ {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/payments/checkout/pu1", nil))
		require.Equal(t, http.StatusOK, res.Code)
	}
	require.Equal(t, 1, orders)

	// a changed total opens a fresh order
	lookup["pu1"] = purchases.Purchase{ID: "pu1", TotalAmount: d("15.00"), PaymentStatus: "pending"}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/payments/checkout/pu1", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, 2, orders)

	form := url.Values{"purchase_id": {"pu1"}, "order_id": {"order_2"}, "payment_id": {"pay_1"}, "signature": {"sig"}}
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Empty(t, sess.Get(pendingOrderKey("pu1")))
}
