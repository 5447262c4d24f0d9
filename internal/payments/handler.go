package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/platform/export"
	"github.com/grocerops/grocerops/internal/purchases"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

// PurchaseLookup loads the purchase being paid for.
type PurchaseLookup interface {
	Get(ctx context.Context, id string) (purchases.Purchase, error)
}

// Handler serves checkout, payment history and the transactions ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Renderer
	rbac      rbac.Middleware
	purchases PurchaseLookup
	audit     shared.AuditRecorder
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, purchases PurchaseLookup, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, purchases: purchases, audit: audit}
}

// MountRoutes registers payment routes under /payments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermShop))
		r.Get("/checkout/{purchaseID}", h.checkout)
		r.Post("/verify", h.verify)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPaymentsView))
		r.Get("/history", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermTransactionsView))
		r.Get("/transactions", h.transactions)
		r.Get("/transactions/export.csv", h.exportTransactions)
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	purchase, err := h.purchases.Get(r.Context(), chi.URLParam(r, "purchaseID"))
	if err != nil {
		h.pages.Fail(w, r, err, "/shop/purchases")
		return
	}
	if purchase.Paid() {
		h.pages.Redirect(w, r, "/shop/purchases", "info", "This purchase is already paid")
		return
	}
	order, err := h.openOrder(r, purchase)
	if err != nil {
		h.pages.Fail(w, r, err, "/shop/purchases")
		return
	}
	h.pages.Page(w, r, http.StatusOK, "pages/payments/checkout.html", "Checkout", map[string]any{
		"Purchase": purchase,
		"Order":    order,
	})
}

// openOrder reuses the gateway order already opened for purchase in this
// session, so reloading the checkout page does not open another one.
func (h *Handler) openOrder(r *http.Request, purchase purchases.Purchase) (Order, error) {
	sess := shared.SessionFromContext(r.Context())
	key := pendingOrderKey(purchase.ID)
	if sess != nil {
		if raw := sess.Get(key); raw != "" {
			var order Order
			if err := json.Unmarshal([]byte(raw), &order); err == nil && order.OrderID != "" && order.Amount.Equal(purchase.TotalAmount) {
				return order, nil
			}
		}
	}
	order, err := h.service.CreateOrder(r.Context(), purchase.ID, purchase.TotalAmount)
	if err != nil {
		return Order{}, err
	}
	if sess != nil {
		if raw, err := json.Marshal(order); err == nil {
			sess.Set(key, string(raw))
		}
	}
	return order, nil
}

func pendingOrderKey(purchaseID string) string {
	return "payment_order:" + purchaseID
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	purchaseID := r.PostFormValue("purchase_id")
	back := "/shop/purchases"
	if purchaseID != "" {
		back = "/payments/checkout/" + purchaseID
	}
	payment, err := h.service.Verify(r.Context(), Verification{
		OrderID:   r.PostFormValue("order_id"),
		PaymentID: r.PostFormValue("payment_id"),
		Signature: r.PostFormValue("signature"),
	})
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			h.pages.Redirect(w, r, back, "error", "The payment response was incomplete, please try again")
			return
		}
		h.pages.Fail(w, r, err, back)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && purchaseID != "" {
		sess.Delete(pendingOrderKey(purchaseID))
	}
	if err := shared.RecordFromContext(r.Context(), h.audit, "payment.verify", "purchase", purchaseID, map[string]any{"payment_id": payment.PaymentID}); err != nil {
		h.logger.Warn("audit payment", slog.Any("error", err))
	}
	h.logger.Info("payment verified", slog.String("purchase_id", purchaseID), slog.String("payment_id", payment.PaymentID))
	h.pages.Redirect(w, r, "/shop/purchases", "success", "Payment received, thank you")
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	errs := map[string]string{}
	items, err := h.service.History(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("payment history failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Page(w, r, http.StatusOK, "pages/payments/history.html", "Payments", map[string]any{"Payments": items, "Errors": errs})
}

type ledgerPageData struct {
	Transactions []Transaction
	Filter       TransactionFilter
	From, To     string
	Revenue      string
	Types        []string
	Statuses     []string
	Errors       map[string]string
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	data := ledgerPageData{
		Filter:   filter,
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
		Types:    []string{TypeSale, TypeRefund, TypeRestock, TypeSalary},
		Statuses: []string{StatusCompleted, StatusPending, StatusFailed},
		Errors:   map[string]string{},
	}
	items, err := h.service.Transactions(r.Context(), filter)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list transactions failed", slog.Any("error", err))
		data.Errors["general"] = shared.UserSafeMessage(err)
	}
	data.Transactions = items
	data.Revenue = Revenue(items).StringFixed(2)
	h.pages.Page(w, r, http.StatusOK, "pages/payments/transactions.html", "Transactions", data)
}

func (h *Handler) exportTransactions(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Transactions(r.Context(), parseFilter(r))
	if err != nil {
		h.pages.Fail(w, r, err, "/payments/transactions")
		return
	}
	export.Attachment(w, "transactions", time.Now())
	if err := WriteTransactionsCSV(w, items); err != nil {
		h.logger.Error("export transactions", slog.Any("error", err))
	}
}

func parseFilter(r *http.Request) TransactionFilter {
	q := r.URL.Query()
	f := TransactionFilter{Type: q.Get("type"), Status: q.Get("status")}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		f.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		f.To = to.AddDate(0, 0, 1)
	}
	return f
}
