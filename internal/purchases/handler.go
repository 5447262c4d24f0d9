package purchases

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grocerops/grocerops/internal/products"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
	"github.com/grocerops/grocerops/report"
)

// Catalogue lists products for the shop.
type Catalogue interface {
	All(ctx context.Context) ([]products.Product, error)
	List(ctx context.Context, f products.Filter) (products.Page, error)
}

// Handler serves the shop, purchase history and invoices.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Renderer
	rbac      rbac.Middleware
	catalogue Catalogue
	pdf       report.Renderer
	audit     shared.AuditRecorder
}

// NewHandler constructs Handler. pdf may be nil, which disables invoices.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, catalogue Catalogue, pdf report.Renderer, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, catalogue: catalogue, pdf: pdf, audit: audit}
}

// MountRoutes registers shop routes under /shop.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll(rbac.PermShop))
	r.Get("/", h.showShop)
	r.Post("/checkout", h.checkout)
	r.Get("/purchases", h.listMine)
	r.Get("/purchases/{id}/invoice.pdf", h.invoice)
}

func (h *Handler) showShop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	filter := products.Filter{Search: q.Get("q"), Category: q.Get("category"), StockOnly: true, Page: page, PerPage: 24}
	errs := map[string]string{}
	result, err := h.catalogue.List(r.Context(), filter)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("shop catalogue failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
		result.Filter = filter
	}
	h.pages.Page(w, r, http.StatusOK, "pages/purchases/shop.html", "Shop", map[string]any{"Page": result, "Errors": errs})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	quantities := map[string]int64{}
	for key, values := range r.PostForm {
		id, ok := strings.CutPrefix(key, "qty_")
		if !ok || len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			continue
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
		if err != nil || qty < 0 {
			h.pages.Redirect(w, r, "/shop", "error", "Quantities must be whole numbers")
			return
		}
		quantities[id] = qty
	}
	catalogue, err := h.catalogue.All(r.Context())
	if err != nil {
		h.pages.Fail(w, r, err, "/shop")
		return
	}
	cart, err := BuildCart(catalogue, quantities)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart):
			h.pages.Redirect(w, r, "/shop", "error", "Choose at least one product")
		case errors.Is(err, ErrInsufficientStock):
			h.pages.Redirect(w, r, "/shop", "error", strings.TrimPrefix(err.Error(), ErrInsufficientStock.Error()+": "))
		default:
			h.pages.Fail(w, r, err, "/shop")
		}
		return
	}
	purchase, err := h.service.Create(r.Context(), cart)
	if err != nil {
		h.pages.Fail(w, r, err, "/shop")
		return
	}
	h.logger.Info("purchase created", slog.String("purchase_id", purchase.ID), slog.String("total", cart.TotalAmount.StringFixed(2)))
	meta := map[string]any{"items": len(cart.Items), "total": cart.TotalAmount.StringFixed(2)}
	if err := shared.RecordFromContext(r.Context(), h.audit, "purchase.create", "purchase", purchase.ID, meta); err != nil {
		h.logger.Warn("audit purchase", slog.Any("error", err))
	}
	h.pages.Redirect(w, r, "/payments/checkout/"+purchase.ID, "success", "Order placed, complete the payment to confirm it")
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	errs := map[string]string{}
	items, err := h.service.Mine(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list purchases failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Page(w, r, http.StatusOK, "pages/purchases/list.html", "My purchases", map[string]any{"Purchases": items, "Errors": errs, "Invoices": h.pdf != nil})
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.pages.Redirect(w, r, "/shop/purchases", "error", "Invoices are not available right now")
		return
	}
	purchase, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, "/shop/purchases")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	html, err := h.pages.Engine.RenderString("pages/purchases/invoice.html", view.TemplateData{
		Title:     "Invoice " + purchase.ID,
		Principal: principal,
		Data:      map[string]any{"Purchase": purchase, "IssuedAt": time.Now()},
	})
	if err != nil {
		h.logger.Error("render invoice html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html, report.A4)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.String("purchase_id", purchase.ID), slog.Any("error", err))
		h.pages.Redirect(w, r, "/shop/purchases", "error", "The invoice could not be generated, please try again later")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=invoice-"+purchase.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
