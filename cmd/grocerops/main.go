package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/grocerops/grocerops/internal/announcements"
	"github.com/grocerops/grocerops/internal/app"
	"github.com/grocerops/grocerops/internal/audit"
	"github.com/grocerops/grocerops/internal/auth"
	"github.com/grocerops/grocerops/internal/dashboard"
	"github.com/grocerops/grocerops/internal/inventory"
	"github.com/grocerops/grocerops/internal/observability"
	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/payments"
	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/platform/cache"
	"github.com/grocerops/grocerops/internal/platform/db"
	"github.com/grocerops/grocerops/internal/products"
	"github.com/grocerops/grocerops/internal/purchases"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/staff"
	"github.com/grocerops/grocerops/internal/suppliers"
	"github.com/grocerops/grocerops/internal/users"
	"github.com/grocerops/grocerops/internal/view"
	"github.com/grocerops/grocerops/jobs"
	"github.com/grocerops/grocerops/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	// The backend validates prices and amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// Alert history and the audit trail live in Postgres. Without it the app
	// still serves live alerts from the Redis snapshot.
	var (
		alertRepo  inventory.AlertRepository
		auditLog   shared.AuditRecorder
		auditStore audit.Store
	)
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Warn("postgres unavailable, alert history and audit log disabled", slog.Any("error", err))
	} else {
		defer dbpool.Close()
		if applied, err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		} else if len(applied) > 0 {
			logger.Info("applied migrations", slog.Any("versions", applied))
		}
		alertRepo = inventory.NewRepository(dbpool)
		auditLog = shared.NewAuditLogger(dbpool)
		auditStore = audit.NewRepository(dbpool)
	}

	metrics := observability.NewMetrics()
	api := backend.NewClient(backend.Options{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.BackendTimeout,
		RateLimit: cfg.BackendRateLimit,
		Logger:    logger,
		Observer:  metrics,
	})

	sessionManager := shared.NewSessionManager(redisClient, "grocerops_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine(cfg.Currency)
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	pages := &view.Renderer{Engine: templates, CSRF: csrfManager, RBAC: rbacService, Logger: logger}

	authService := auth.NewService(api)
	productService := products.NewService(api)
	orderService := orders.NewService(api)
	supplierService := suppliers.NewService(api, redisClient, logger)
	userService := users.NewService(api)
	purchaseService := purchases.NewService(api)
	paymentService := payments.NewService(api)
	staffService := staff.NewService(api)
	announcementService := announcements.NewService(api, announcements.NewCache(redisClient, cfg.AnnouncementCacheTTL), logger)

	inventoryService := inventory.NewService(inventory.Deps{
		Products: productService,
		Orders:   orderService,
		Store:    inventory.NewRedisStore(redisClient, 24*time.Hour),
		Repo:     alertRepo,
		Observer: metrics,
		Logger:   logger,
		Rules: inventory.Rules{
			LowStockThreshold: cfg.LowStockThreshold,
			ExpiryWindow:      cfg.ExpiryWindow,
		},
		MaxAge: cfg.InventoryPollInterval,
	})

	dashboardService := dashboard.NewService(dashboard.Sources{
		Inventory:     inventoryService,
		Orders:        orderService,
		Payments:      paymentService,
		Users:         userService,
		Staff:         staffService,
		Announcements: announcementService,
		Purchases:     purchaseService,
	}, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	inventoryHandler := inventory.NewHandler(logger, inventoryService, pages, rbacMiddleware, cfg.InventoryPollInterval).WithAudit(auditLog)
	if cfg.BackendServiceToken != "" {
		inventoryHandler.WithRescan(func(ctx context.Context, reason string) error {
			_, err := jobClient.EnqueueAlertScan(ctx, reason)
			return err
		})
	}

	pdf := report.NewClient(cfg.GotenbergURL)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		RBACMiddleware:       rbacMiddleware,
		AuthHandler:          auth.NewHandler(logger, authService, pages, sessionManager, csrfManager),
		DashboardHandler:     dashboard.NewHandler(logger, dashboardService, pages, rbacMiddleware),
		InventoryHandler:     inventoryHandler,
		ProductsHandler:      products.NewHandler(logger, productService, pages, rbacMiddleware, auditLog, supplierService),
		OrdersHandler:        orders.NewHandler(logger, orderService, pages, rbacMiddleware, auditLog, productService, supplierService),
		PurchasesHandler:     purchases.NewHandler(logger, purchaseService, pages, rbacMiddleware, productService, pdf, auditLog),
		PaymentsHandler:      payments.NewHandler(logger, paymentService, pages, rbacMiddleware, purchaseService, auditLog),
		SuppliersHandler:     suppliers.NewHandler(logger, supplierService, pages, rbacMiddleware, auditLog),
		UsersHandler:         users.NewHandler(logger, userService, pages, rbacMiddleware, auditLog),
		AnnouncementsHandler: announcements.NewHandler(logger, announcementService, pages, rbacMiddleware, auditLog),
		StaffHandler:         staff.NewHandler(logger, staffService, pages, rbacMiddleware, userService, auditLog),
		AuditHandler:         audit.NewHandler(logger, audit.NewService(auditStore), pages, rbacMiddleware),
		JobHandler:           jobs.NewHandler(inspector, logger),
		PermissionsHandler:   rbac.NewPermissionsHandler(rbacService, rbacMiddleware),
		Metrics:              metrics,
	})

	monitor := inventory.NewMonitor(inventoryService, cfg.InventoryPollInterval, cfg.BackendServiceToken, logger)
	go monitor.Run(ctx)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
