package orders

import (
	"context"
	"errors"
	"fmt"
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
)

// Catalogue lists products that can be ordered.
type Catalogue interface {
	All(ctx context.Context) ([]products.Product, error)
}

// SupplierLister provides supplier choices for the order form.
type SupplierLister interface {
	Options(ctx context.Context) []view.Option
}

// Handler serves the restock order pages for staff and suppliers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Renderer
	rbac      rbac.Middleware
	audit     shared.AuditRecorder
	catalogue Catalogue
	suppliers SupplierLister
}

// NewHandler constructs the order handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, audit shared.AuditRecorder, catalogue Catalogue, suppliers SupplierLister) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, audit: audit, catalogue: catalogue, suppliers: suppliers}
}

// MountRoutes registers the admin/staff order routes under /orders.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermOrdersView))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermOrdersCreate))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Post("/{id}/cancel", h.transitionTo(StatusCancelled, "/orders", "Order cancelled"))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermOrdersReceive))
		r.Post("/{id}/receive", h.transitionTo(StatusDelivered, "/orders", "Delivery confirmed"))
	})
}

// MountSupplierRoutes registers the supplier workflow under /supplier.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll(rbac.PermSupplierOrders))
	r.Get("/orders", h.supplierOrders)
	r.Get("/deliveries", h.supplierDeliveries)
	r.Post("/orders/{id}/status", h.supplierTransition)
}

type listPageData struct {
	Orders   []Order
	Status   string
	Statuses []Status
	Counts   map[Status]int
	Role     rbac.Role
	Errors   map[string]string
}

// Actions lists the transitions the viewer may trigger on o.
func (d listPageData) Actions(o Order) []Status {
	return NextStatuses(d.Role, o.Status)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, "pages/orders/list.html", "Restock orders", h.service.List)
}

func (h *Handler) supplierOrders(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, "pages/orders/supplier.html", "Incoming orders", h.service.ForSupplier)
}

func (h *Handler) supplierDeliveries(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, "pages/orders/deliveries.html", "Deliveries", func(ctx context.Context) ([]Order, error) {
		items, err := h.service.ForSupplier(ctx)
		if err != nil {
			return nil, err
		}
		return Filter(items, StatusApproved, StatusShipped, StatusDelivered), nil
	})
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, tpl, title string, load func(context.Context) ([]Order, error)) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	status := r.URL.Query().Get("status")
	data := listPageData{Status: status, Statuses: Statuses(), Role: rbac.Role(principal.Role), Errors: map[string]string{}}
	items, err := load(r.Context())
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list orders failed", slog.Any("error", err))
		data.Errors["general"] = shared.UserSafeMessage(err)
	}
	data.Counts = CountByStatus(items)
	if status != "" {
		items = Filter(items, Status(status))
	}
	data.Orders = items
	h.pages.Page(w, r, http.StatusOK, tpl, title, data)
}

type orderForm struct {
	Supplier     string
	Notes        string
	ExpectedDate string
	Lines        []lineForm
}

type lineForm struct {
	Product  string
	Quantity string
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	form := orderForm{Lines: []lineForm{{}, {}, {}}}
	if product := r.URL.Query().Get("product"); product != "" {
		form.Lines[0] = lineForm{Product: product, Quantity: r.URL.Query().Get("quantity")}
	}
	if supplier := r.URL.Query().Get("supplier"); supplier != "" {
		form.Supplier = supplier
	}
	h.renderForm(w, r, form, map[string]string{}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	catalogue, err := h.catalogue.All(r.Context())
	if err != nil {
		h.pages.Fail(w, r, err, "/orders")
		return
	}
	form, in, errs := parseOrderForm(r, catalogue)
	if len(errs) == 0 {
		o, err := h.service.Create(r.Context(), in)
		if err == nil {
			h.record(r, "order.create", o.ID, map[string]any{"supplier": in.Supplier, "total": in.TotalAmount.String()})
			h.pages.Redirect(w, r, "/orders", "success", "Order "+o.Reference()+" placed")
			return
		}
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		if errors.Is(err, ErrEmptyOrder) {
			errs = map[string]string{"items": "Add at least one item"}
		} else {
			errs = shared.FieldErrors(err)
		}
	}
	h.renderForm(w, r, form, errs, http.StatusBadRequest)
}

func (h *Handler) transitionTo(to Status, back, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.applyTransition(w, r, to, back, message)
	}
}

func (h *Handler) supplierTransition(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	to := Status(r.PostFormValue("status"))
	back := "/supplier/orders"
	if r.PostFormValue("return_to") == "deliveries" {
		back = "/supplier/deliveries"
	}
	h.applyTransition(w, r, to, back, "Order marked "+string(to))
}

func (h *Handler) applyTransition(w http.ResponseWriter, r *http.Request, to Status, back, message string) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")
	o, err := h.service.Transition(r.Context(), rbac.Role(principal.Role), id, to)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			h.pages.Redirect(w, r, back, "error", "That status change is not allowed")
			return
		}
		h.pages.Fail(w, r, err, back)
		return
	}
	h.record(r, "order.status", id, map[string]any{"status": to})
	h.pages.Redirect(w, r, back, "success", fmt.Sprintf("%s: %s", o.Reference(), message))
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, form orderForm, errs map[string]string, status int) {
	var productOptions []view.Option
	if items, err := h.catalogue.All(r.Context()); err == nil {
		for _, p := range products.Apply(items, products.Filter{}) {
			productOptions = append(productOptions, view.Option{Value: p.ID, Label: fmt.Sprintf("%s (%s, %d in stock)", p.Name, p.SKU, p.Quantity)})
		}
	} else if h.pages.HandleExpired(w, r, err) {
		return
	}
	var suppliers []view.Option
	if h.suppliers != nil {
		suppliers = h.suppliers.Options(r.Context())
	}
	h.pages.Page(w, r, status, "pages/orders/form.html", "New restock order", map[string]any{
		"Form": form, "Errors": errs, "Products": productOptions, "Suppliers": suppliers,
	})
}

func (h *Handler) record(r *http.Request, action, id string, meta map[string]any) {
	if err := shared.RecordFromContext(r.Context(), h.audit, action, "order", id, meta); err != nil {
		h.logger.Warn("audit order", slog.Any("error", err))
	}
}

func parseOrderForm(r *http.Request, catalogue []products.Product) (orderForm, CreateInput, map[string]string) {
	form := orderForm{
		Supplier:     strings.TrimSpace(r.PostFormValue("supplier")),
		Notes:        strings.TrimSpace(r.PostFormValue("notes")),
		ExpectedDate: strings.TrimSpace(r.PostFormValue("expected_date")),
	}
	errs := map[string]string{}
	in := CreateInput{Supplier: form.Supplier, Notes: form.Notes}
	if form.ExpectedDate != "" {
		if d, err := time.Parse("2006-01-02", form.ExpectedDate); err == nil {
			in.ExpectedDate = &d
		} else {
			errs["expecteddate"] = "Use the YYYY-MM-DD format"
		}
	}
	byID := make(map[string]products.Product, len(catalogue))
	for _, p := range catalogue {
		byID[p.ID] = p
	}
	ids := r.PostForm["product"]
	qtys := r.PostForm["quantity"]
	for i, id := range ids {
		qty := ""
		if i < len(qtys) {
			qty = strings.TrimSpace(qtys[i])
		}
		form.Lines = append(form.Lines, lineForm{Product: id, Quantity: qty})
		if id == "" && qty == "" {
			continue
		}
		p, ok := byID[id]
		if !ok {
			errs["items"] = "Choose a product for every line"
			continue
		}
		n, err := strconv.ParseInt(qty, 10, 64)
		if err != nil || n <= 0 {
			errs["items"] = "Quantities must be positive whole numbers"
			continue
		}
		in.Items = append(in.Items, ItemInput{Product: p.ID, Name: p.Name, Quantity: n, Price: p.Price})
	}
	return form, in, errs
}
