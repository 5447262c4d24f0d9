package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grocerops/grocerops/internal/platform/httpx"
	"github.com/grocerops/grocerops/internal/shared"
)

// PermissionsHandler exposes the signed-in user's capabilities to page scripts.
type PermissionsHandler struct {
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireLogin()).Get("/", h.listPermissions)
}

type permissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Role:        principal.Role,
		Permissions: h.service.EffectivePermissions(Role(principal.Role)),
	})
}
