package products

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
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/platform/export"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

const maxUploadBytes = 5 << 20

// SupplierLister provides supplier choices for the product form.
type SupplierLister interface {
	Options(ctx context.Context) []view.Option
}

// Handler wires HTTP endpoints for the product catalogue.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *view.Renderer
	rbac      rbac.Middleware
	audit     shared.AuditRecorder
	suppliers SupplierLister
}

// NewHandler constructs the product handler. suppliers may be nil.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, audit shared.AuditRecorder, suppliers SupplierLister) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, audit: audit, suppliers: suppliers}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProductsView))
		r.Get("/", h.list)
		r.Get("/export.csv", h.exportCSV)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermProductsEdit))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Post("/bulk", h.bulkUpload)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryEdit, rbac.PermProductsEdit))
		r.Post("/{id}/stock", h.adjustStock)
	})
}

type formErrors map[string]string

type productForm struct {
	ID          string
	Name        string
	SKU         string
	Category    string
	Description string
	Price       string
	Quantity    string
	Unit        string
	Threshold   string
	ExpiryDate  string
	Supplier    string
}

func parseFilter(r *http.Request) Filter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	return Filter{Search: q.Get("q"), Category: q.Get("category"), Page: page}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)
	page, err := h.service.List(r.Context(), filter)
	errs := formErrors{}
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list products failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
		page.Filter = filter
	}
	h.pages.Page(w, r, http.StatusOK, "pages/products/list.html", "Products", map[string]any{"Page": page, "Errors": errs})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.All(r.Context())
	if err != nil {
		h.pages.Fail(w, r, err, "/products")
		return
	}
	filter := parseFilter(r)
	export.Attachment(w, "products", time.Now())
	if err := WriteCSV(w, Apply(items, filter)); err != nil {
		h.logger.Error("export products", slog.Any("error", err))
	}
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, productForm{Threshold: "0"}, formErrors{}, http.StatusOK)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, "/products")
		return
	}
	h.renderForm(w, r, formFromProduct(p), formErrors{}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form, in, errs := parseProductForm(r)
	if len(errs) == 0 {
		p, err := h.service.Create(r.Context(), in)
		if err == nil {
			h.record(r, "product.create", p.ID, map[string]any{"sku": p.SKU})
			h.pages.Redirect(w, r, "/products", "success", "Product "+p.Name+" created")
			return
		}
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		errs = shared.FieldErrors(err)
	}
	h.renderForm(w, r, form, errs, http.StatusBadRequest)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	form, in, errs := parseProductForm(r)
	form.ID = id
	if len(errs) == 0 {
		p, err := h.service.Update(r.Context(), id, in)
		if err == nil {
			h.record(r, "product.update", p.ID, nil)
			h.pages.Redirect(w, r, "/products", "success", "Product "+p.Name+" updated")
			return
		}
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		errs = shared.FieldErrors(err)
	}
	h.renderForm(w, r, form, errs, http.StatusBadRequest)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.pages.Fail(w, r, err, "/products")
		return
	}
	h.record(r, "product.delete", id, nil)
	h.pages.Redirect(w, r, "/products", "success", "Product deleted")
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := safeReturn(r.PostFormValue("return_to"), "/products")
	id := chi.URLParam(r, "id")
	delta, err := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("delta")), 10, 64)
	if err != nil {
		h.pages.Redirect(w, r, back, "error", "Quantity change must be a whole number")
		return
	}
	p, err := h.service.AdjustStock(r.Context(), id, StockAdjustment{Delta: delta, Reason: r.PostFormValue("reason")})
	if err != nil {
		if errors.Is(err, ErrInvalidAdjustment) {
			h.pages.Redirect(w, r, back, "error", "Enter a non-zero quantity change and a reason")
			return
		}
		h.pages.Fail(w, r, err, back)
		return
	}
	h.record(r, "product.stock", id, map[string]any{"delta": delta})
	h.pages.Redirect(w, r, back, "success", fmt.Sprintf("%s stock is now %d", p.Name, p.Quantity))
}

func (h *Handler) bulkUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.pages.Redirect(w, r, "/products", "error", "Upload a CSV file smaller than 5 MB")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.pages.Redirect(w, r, "/products", "error", "Choose a CSV file to upload")
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		h.pages.Redirect(w, r, "/products", "error", "Only .csv files are accepted")
		return
	}
	res, err := h.service.BulkUpload(r.Context(), header.Filename, file)
	if err != nil {
		h.pages.Fail(w, r, err, "/products")
		return
	}
	h.record(r, "product.bulk", "", map[string]any{"created": res.Created, "updated": res.Updated, "failed": res.Failed})
	kind := "success"
	if res.Failed > 0 {
		kind = "warning"
	}
	h.pages.Redirect(w, r, "/products", kind, fmt.Sprintf("Import finished: %d created, %d updated, %d failed", res.Created, res.Updated, res.Failed))
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, form productForm, errs formErrors, status int) {
	title := "New product"
	if form.ID != "" {
		title = "Edit product"
	}
	var suppliers []view.Option
	if h.suppliers != nil {
		suppliers = h.suppliers.Options(r.Context())
	}
	h.pages.Page(w, r, status, "pages/products/form.html", title, map[string]any{"Form": form, "Errors": errs, "Suppliers": suppliers})
}

func (h *Handler) record(r *http.Request, action, id string, meta map[string]any) {
	if err := shared.RecordFromContext(r.Context(), h.audit, action, "product", id, meta); err != nil {
		h.logger.Warn("audit product", slog.Any("error", err))
	}
}

func parseProductForm(r *http.Request) (productForm, Input, formErrors) {
	form := productForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		SKU:         strings.TrimSpace(r.PostFormValue("sku")),
		Category:    strings.TrimSpace(r.PostFormValue("category")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Price:       strings.TrimSpace(r.PostFormValue("price")),
		Quantity:    strings.TrimSpace(r.PostFormValue("quantity")),
		Unit:        strings.TrimSpace(r.PostFormValue("unit")),
		Threshold:   strings.TrimSpace(r.PostFormValue("threshold")),
		ExpiryDate:  strings.TrimSpace(r.PostFormValue("expiry_date")),
		Supplier:    strings.TrimSpace(r.PostFormValue("supplier")),
	}
	errs := formErrors{}
	in := Input{Name: form.Name, SKU: form.SKU, Category: form.Category, Description: form.Description, Unit: form.Unit, Supplier: form.Supplier}
	if price, err := decimal.NewFromString(form.Price); err == nil {
		in.Price = price
	} else {
		errs["price"] = "Price must be a number"
	}
	if qty, err := strconv.ParseInt(form.Quantity, 10, 64); err == nil {
		in.Quantity = qty
	} else {
		errs["quantity"] = "Quantity must be a whole number"
	}
	if form.Threshold != "" {
		if threshold, err := strconv.ParseInt(form.Threshold, 10, 64); err == nil {
			in.Threshold = threshold
		} else {
			errs["threshold"] = "Threshold must be a whole number"
		}
	}
	if form.ExpiryDate != "" {
		if expiry, err := time.Parse("2006-01-02", form.ExpiryDate); err == nil {
			in.ExpiryDate = &expiry
		} else {
			errs["expirydate"] = "Use the YYYY-MM-DD format"
		}
	}
	return form, in, errs
}

func formFromProduct(p Product) productForm {
	form := productForm{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Quantity:    strconv.FormatInt(p.Quantity, 10),
		Unit:        p.Unit,
		Threshold:   strconv.FormatInt(p.Threshold, 10),
		Supplier:    p.Supplier.ID,
	}
	if p.ExpiryDate != nil {
		form.ExpiryDate = p.ExpiryDate.Format("2006-01-02")
	}
	return form
}

// safeReturn only allows local redirect targets.
func safeReturn(target, fallback string) string {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return target
	}
	return fallback
}
