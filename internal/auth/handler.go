package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/view"
)

// HomePath is where signed-in users land.
const HomePath = "/dashboard"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	pages          *view.Renderer
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pages *view.Renderer, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		pages:          pages,
		sessionManager: sessions,
		csrfManager:    csrf,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type loginPageData struct {
	Form   LoginInput
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	h.pages.Page(w, r, http.StatusOK, "pages/auth/login.html", "Sign in", loginPageData{Errors: map[string]string{}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := LoginInput{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	login, err := h.service.Authenticate(r.Context(), form)
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) && !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login failed", slog.Any("error", err))
		}
		form.Password = ""
		h.pages.Page(w, r, http.StatusBadRequest, "pages/auth/login.html", "Sign in", loginPageData{Form: form, Errors: shared.FieldErrors(err)})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SignIn(login.User.Principal(), login.AccessToken, login.RefreshToken)
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	if _, err := h.csrfManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate csrf", slog.Any("error", err))
	}
	h.logger.Info("user signed in", slog.String("user_id", login.User.ID), slog.String("role", string(login.User.Role)))
	name := login.User.Name
	if name == "" {
		name = login.User.Email
	}
	h.pages.Redirect(w, r, HomePath, "success", "Welcome back, "+name)
}

type registerPageData struct {
	Form   RegisterInput
	Roles  []rbac.Role
	Errors map[string]string
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, RegisterInput{Role: rbac.RoleUser}, map[string]string{}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := RegisterInput{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm"),
		Role:     rbac.Role(r.PostFormValue("role")),
		Phone:    strings.TrimSpace(r.PostFormValue("phone")),
		Address:  strings.TrimSpace(r.PostFormValue("address")),
		Company:  strings.TrimSpace(r.PostFormValue("company")),
	}
	account, err := h.service.Register(r.Context(), form)
	if err != nil {
		if h.pages.HandleExpired(w, r, err) {
			return
		}
		errs := shared.FieldErrors(err)
		form.Password, form.Confirm = "", ""
		h.renderRegister(w, r, form, errs, http.StatusBadRequest)
		return
	}
	h.logger.Info("account registered", slog.String("user_id", account.ID), slog.String("role", string(account.Role)))
	h.pages.Redirect(w, r, view.LoginPath, "success", "Account created, you can sign in now")
}

func (h *Handler) renderRegister(w http.ResponseWriter, r *http.Request, form RegisterInput, errs map[string]string, status int) {
	h.pages.Page(w, r, status, "pages/auth/register.html", "Create account", registerPageData{
		Form:   form,
		Roles:  []rbac.Role{rbac.RoleUser, rbac.RoleRetailer},
		Errors: errs,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if _, refresh := sess.Tokens(); refresh != "" {
			if err := h.service.Logout(r.Context(), refresh); err != nil {
				h.logger.Warn("backend logout", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, view.LoginPath, http.StatusSeeOther)
}
