package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/grocerops/grocerops/internal/shared"
)

// LoginPath is where anonymous page requests are sent.
const LoginPath = "/auth/login"

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireLogin rejects anonymous sessions.
func (m Middleware) RequireLogin() func(http.Handler) http.Handler {
	return m.require(nil, false)
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(normalizePermissions(perms), false)
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(normalizePermissions(perms), true)
}

func (m Middleware) require(required []string, all bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				denyAnonymous(w, r)
				return
			}
			role := Role(principal.Role)
			if len(required) == 0 || m.allowed(role, required, all) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.String("role", principal.Role), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) allowed(role Role, required []string, all bool) bool {
	if all {
		for _, p := range required {
			if !m.Service.Can(role, p) {
				return false
			}
		}
		return true
	}
	for _, p := range required {
		if m.Service.Can(role, p) {
			return true
		}
	}
	return false
}

func denyAnonymous(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, seen := unique[p]; seen {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
