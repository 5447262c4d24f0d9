package suppliers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

// Handler serves supplier management pages.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Renderer
	rbac    rbac.Middleware
	audit   shared.AuditRecorder
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, audit: audit}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermSuppliersView))
		r.Get("/", h.listSuppliers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSuppliersEdit))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createSupplier)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.updateSupplier)
		r.Post("/{id}/delete", h.deleteSupplier)
	})
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	errs := map[string]string{}
	listing, err := h.service.List(r.Context())
	switch {
	case err != nil:
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list suppliers failed", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	case listing.Stale:
		h.pages.Notice(r, "warning", "The backend is unreachable, showing the last known supplier list")
	}
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	items := listing.Suppliers
	if search != "" {
		items = make([]Supplier, 0, len(listing.Suppliers))
		for _, s := range listing.Suppliers {
			if strings.Contains(strings.ToLower(s.DisplayName()+" "+s.Email+" "+s.Name), search) {
				items = append(items, s)
			}
		}
	}
	h.pages.Page(w, r, http.StatusOK, "pages/suppliers/list.html", "Suppliers", map[string]any{
		"Suppliers": items,
		"Listing":   listing,
		"Search":    search,
		"Errors":    errs,
	})
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, "", Input{}, map[string]string{}, http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	sup, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, "/suppliers")
		return
	}
	in := Input{Name: sup.Name, Email: sup.Email, Phone: sup.Phone, Address: sup.Address, Company: sup.Company}
	h.renderForm(w, r, sup.ID, in, map[string]string{}, http.StatusOK)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	in, ok := parseInput(w, r)
	if !ok {
		return
	}
	sup, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.formFailed(w, r, "", in, err)
		return
	}
	h.record(r, "supplier.create", sup.ID)
	h.pages.Redirect(w, r, "/suppliers", "success", "Supplier "+sup.DisplayName()+" added")
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	in, ok := parseInput(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	sup, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.formFailed(w, r, id, in, err)
		return
	}
	h.record(r, "supplier.update", sup.ID)
	h.pages.Redirect(w, r, "/suppliers", "success", "Supplier updated")
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.pages.Fail(w, r, err, "/suppliers")
		return
	}
	h.record(r, "supplier.delete", id)
	h.pages.Redirect(w, r, "/suppliers", "success", "Supplier removed")
}

func parseInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return Input{}, false
	}
	return Input{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Phone:    strings.TrimSpace(r.PostFormValue("phone")),
		Address:  strings.TrimSpace(r.PostFormValue("address")),
		Company:  strings.TrimSpace(r.PostFormValue("company")),
	}, true
}

func (h *Handler) formFailed(w http.ResponseWriter, r *http.Request, id string, in Input, err error) {
	if h.pages.HandleExpired(w, r, err) {
		return
	}
	errs := shared.FieldErrors(err)
	if errors.Is(err, ErrPasswordRequired) {
		errs = map[string]string{"password": "Password is required"}
	}
	in.Password = ""
	h.renderForm(w, r, id, in, errs, http.StatusBadRequest)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, id string, in Input, errs map[string]string, status int) {
	title := "New supplier"
	if id != "" {
		title = "Edit supplier"
	}
	h.pages.Page(w, r, status, "pages/suppliers/form.html", title, map[string]any{"ID": id, "Form": in, "Errors": errs})
}

func (h *Handler) record(r *http.Request, action, id string) {
	if err := shared.RecordFromContext(r.Context(), h.audit, action, "supplier", id, nil); err != nil {
		h.logger.Warn("audit supplier", slog.Any("error", err))
	}
}
