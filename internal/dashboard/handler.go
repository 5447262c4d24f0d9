package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

var templates = map[rbac.Role]string{
	rbac.RoleAdmin:    "pages/dashboard/admin.html",
	rbac.RoleStaff:    "pages/dashboard/staff.html",
	rbac.RoleSupplier: "pages/dashboard/supplier.html",
}

// Handler serves /dashboard.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Renderer
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAll(rbac.PermDashboardView)).Get("/", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	role := rbac.Role(principal.Role)
	v, err := h.service.Build(r.Context(), role)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("dashboard failed", slog.Any("error", err))
		h.pages.Page(w, r, http.StatusBadGateway, "pages/errors/unavailable.html", "Dashboard", map[string]any{"Message": shared.UserSafeMessage(err)})
		return
	}
	name, ok := templates[role]
	if !ok {
		name = "pages/dashboard/customer.html"
	}
	h.pages.Page(w, r, http.StatusOK, name, "Dashboard", v)
}
