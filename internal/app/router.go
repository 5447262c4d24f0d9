package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/grocerops/grocerops/internal/announcements"
	"github.com/grocerops/grocerops/internal/audit"
	"github.com/grocerops/grocerops/internal/auth"
	"github.com/grocerops/grocerops/internal/dashboard"
	"github.com/grocerops/grocerops/internal/inventory"
	"github.com/grocerops/grocerops/internal/observability"
	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/payments"
	"github.com/grocerops/grocerops/internal/products"
	"github.com/grocerops/grocerops/internal/purchases"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/staff"
	"github.com/grocerops/grocerops/internal/suppliers"
	"github.com/grocerops/grocerops/internal/users"
	"github.com/grocerops/grocerops/jobs"
	"github.com/grocerops/grocerops/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware

	AuthHandler          *auth.Handler
	DashboardHandler     *dashboard.Handler
	InventoryHandler     *inventory.Handler
	ProductsHandler      *products.Handler
	OrdersHandler        *orders.Handler
	PurchasesHandler     *purchases.Handler
	PaymentsHandler      *payments.Handler
	SuppliersHandler     *suppliers.Handler
	UsersHandler         *users.Handler
	AnnouncementsHandler *announcements.Handler
	StaffHandler         *staff.Handler
	AuditHandler         *audit.Handler
	JobHandler           *jobs.Handler
	PermissionsHandler   *rbac.PermissionsHandler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with GrocerOps defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, auth.HomePath, http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything below requires a signed-in user; handlers add their own
	// permission checks on top.
	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireLogin())
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
			r.Route("/supplier", params.OrdersHandler.MountSupplierRoutes)
		}
		if params.PurchasesHandler != nil {
			r.Route("/shop", params.PurchasesHandler.MountRoutes)
		}
		if params.PaymentsHandler != nil {
			r.Route("/payments", params.PaymentsHandler.MountRoutes)
		}
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AnnouncementsHandler != nil {
			r.Route("/announcements", params.AnnouncementsHandler.MountRoutes)
		}
		if params.StaffHandler != nil {
			r.Route("/staff", params.StaffHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
