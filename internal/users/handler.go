package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Renderer
	rbac    rbac.Middleware
	audit   shared.AuditRecorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, rbac rbac.Middleware, audit shared.AuditRecorder) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, rbac: rbac, audit: audit}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermUsersView))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermUsersEdit))
		r.Get("/new", h.showCreateUserForm)
		r.Post("/", h.createUser)
		r.Post("/{id}/role", h.updateRole)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

type formErrors map[string]string

type listPageData struct {
	Users  []User
	Role   string
	Roles  []rbac.Role
	Errors formErrors
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	role := rbac.Role(r.URL.Query().Get("role"))
	data := listPageData{Role: string(role), Roles: rbac.Roles(), Errors: formErrors{}}
	users, err := h.service.List(r.Context(), role)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		h.logger.Error("list users failed", slog.Any("error", err))
		data.Errors["general"] = shared.UserSafeMessage(err)
		h.pages.Page(w, r, http.StatusBadGateway, "pages/users/list.html", "Users", data)
		return
	}
	data.Users = users
	h.pages.Page(w, r, http.StatusOK, "pages/users/list.html", "Users", data)
}

func (h *Handler) showCreateUserForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, CreateInput{Role: rbac.RoleStaff}, formErrors{}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := CreateInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     rbac.Role(r.PostFormValue("role")),
		Phone:    r.PostFormValue("phone"),
		Address:  r.PostFormValue("address"),
		Company:  r.PostFormValue("company"),
	}
	user, err := h.service.Create(r.Context(), in)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		errs := formErrors(shared.FieldErrors(err))
		if errors.Is(err, ErrInvalidRole) {
			errs = formErrors{"role": "Choose a valid role"}
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			h.logger.Warn("create user failed", slog.Any("error", err))
		}
		in.Password = ""
		h.renderForm(w, r, in, errs, http.StatusBadRequest)
		return
	}
	h.record(r, "user.create", user.ID, map[string]any{"role": user.Role})
	h.pages.Redirect(w, r, "/users", "success", "User "+user.Email+" created")
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	role := rbac.Role(r.PostFormValue("role"))
	if role == "" {
		h.pages.Redirect(w, r, "/users", "error", "Choose a role")
		return
	}
	if _, err := h.service.Update(r.Context(), id, UpdateInput{Role: role}); err != nil {
		h.pages.Fail(w, r, err, "/users")
		return
	}
	h.record(r, "user.role", id, map[string]any{"role": role})
	h.pages.Redirect(w, r, "/users", "success", "Role updated")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if principal, ok := shared.PrincipalFromContext(r.Context()); ok && principal.ID == id {
		h.pages.Redirect(w, r, "/users", "error", "You cannot delete your own account")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.pages.Fail(w, r, err, "/users")
		return
	}
	h.record(r, "user.delete", id, nil)
	h.pages.Redirect(w, r, "/users", "success", "User deleted")
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, form CreateInput, errs formErrors, status int) {
	h.pages.Page(w, r, status, "pages/users/form.html", "New user", map[string]any{"Form": form, "Errors": errs, "Roles": rbac.Roles()})
}

func (h *Handler) record(r *http.Request, action, id string, meta map[string]any) {
	if err := shared.RecordFromContext(r.Context(), h.audit, action, "user", id, meta); err != nil {
		h.logger.Warn("audit user", slog.Any("error", err))
	}
}
