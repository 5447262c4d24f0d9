package view

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
)

// LoginPath is where hard logouts land.
const LoginPath = "/auth/login"

// Renderer builds TemplateData from the request session and renders pages.
// Handlers share one Renderer instead of repeating session bookkeeping.
type Renderer struct {
	Engine *Engine
	CSRF   *shared.CSRFManager
	RBAC   *rbac.Service
	Logger *slog.Logger
}

// Data assembles TemplateData for r, consuming the pending flash message.
func (rd *Renderer) Data(r *http.Request, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := rd.CSRF.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	td := TemplateData{Title: title, CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	if principal, ok := sess.Principal(); ok {
		td.Principal = principal
		td.Permissions = make(map[string]bool)
		if rd.RBAC != nil {
			for _, perm := range rd.RBAC.EffectivePermissions(rbac.Role(principal.Role)) {
				td.Permissions[perm] = true
			}
		}
	}
	return td
}

// Page renders template name with status.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	td := rd.Data(r, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := rd.Engine.Render(w, name, td); err != nil {
		rd.Logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

// Redirect queues a flash message and redirects with 303.
func (rd *Renderer) Redirect(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// Fail reports err to the user. An expired backend session signs the user out
// and sends them to the login page; anything else becomes an error flash and a
// redirect to fallback.
func (rd *Renderer) Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if rd.HandleExpired(w, r, err) {
		return
	}
	rd.Logger.Warn("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	rd.Redirect(w, r, fallback, "error", shared.UserSafeMessage(err))
}

// HandleExpired performs the hard logout when err is backend.ErrSessionExpired.
func (rd *Renderer) HandleExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrSessionExpired) {
		return false
	}
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.SignOut()
	}
	rd.Logger.Info("backend session expired", slog.String("path", r.URL.Path))
	rd.Redirect(w, r, LoginPath, "warning", "Your session has expired, please sign in again")
	return true
}

// Notice queues a flash message that the next rendered page displays, which
// may be the page being rendered for this request.
func (rd *Renderer) Notice(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
