// Package dashboard assembles the role specific landing pages.
package dashboard

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/grocerops/grocerops/internal/announcements"
	"github.com/grocerops/grocerops/internal/inventory"
	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/payments"
	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/purchases"
	"github.com/grocerops/grocerops/internal/rbac"
	"github.com/grocerops/grocerops/internal/shared"
	"github.com/grocerops/grocerops/internal/staff"
	"github.com/grocerops/grocerops/internal/view/chart"
)

const (
	recentLimit   = 5
	revenueMonths = 6
)

// InventoryReader exposes the current inventory snapshot.
type InventoryReader interface {
	Current(ctx context.Context) (inventory.Snapshot, error)
}

// OrderReader lists restock orders.
type OrderReader interface {
	List(ctx context.Context) ([]orders.Order, error)
	ForSupplier(ctx context.Context) ([]orders.Order, error)
}

// TransactionReader lists the transaction ledger.
type TransactionReader interface {
	Transactions(ctx context.Context, f payments.TransactionFilter) ([]payments.Transaction, error)
}

// UserCounter counts accounts by role.
type UserCounter interface {
	Count(ctx context.Context, role rbac.Role) (int, error)
}

// StaffReader exposes leave and salary data.
type StaffReader interface {
	PendingLeave(ctx context.Context) (int, error)
	MyLeave(ctx context.Context) ([]staff.Leave, error)
	MySalary(ctx context.Context) ([]staff.Salary, error)
}

// AnnouncementReader lists announcements visible to a role.
type AnnouncementReader interface {
	Visible(ctx context.Context, role rbac.Role, limit int) ([]announcements.Announcement, error)
}

// PurchaseReader lists the signed-in buyer's purchases.
type PurchaseReader interface {
	Mine(ctx context.Context) ([]purchases.Purchase, error)
}

// Sources are the services widgets read from.
type Sources struct {
	Inventory     InventoryReader
	Orders        OrderReader
	Payments      TransactionReader
	Users         UserCounter
	Staff         StaffReader
	Announcements AnnouncementReader
	Purchases     PurchaseReader
}

// View is everything a dashboard template may show. Widgets that failed are
// listed in Errors by name and left empty.
type View struct {
	Role          rbac.Role
	Counts        inventory.Counts
	Alerts        []inventory.Alert
	PendingOrders int
	Revenue       decimal.Decimal
	RevenueChart  template.HTML
	StaffCount    int
	PendingLeave  int
	Announcements []announcements.Announcement
	MyLeave       []staff.Leave
	MySalary      []staff.Salary
	OrderCounts   map[orders.Status]int
	Statuses      []orders.Status
	RecentOrders  []orders.Order
	Purchases     []purchases.Purchase
	Errors        map[string]string
	GeneratedAt   time.Time
}

// Failed reports whether the named widget could not be loaded.
func (v View) Failed(widget string) bool {
	_, ok := v.Errors[widget]
	return ok
}

// Service builds dashboards.
type Service struct {
	src    Sources
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs Service.
func NewService(src Sources, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, logger: logger, now: time.Now}
}

// widgets runs loaders concurrently. A failing loader is recorded against its
// name and does not stop the others; an expired session aborts the build.
type widgets struct {
	g      *errgroup.Group
	ctx    context.Context
	logger *slog.Logger
	mu     sync.Mutex
	errs   map[string]string
}

func (w *widgets) run(name string, load func(ctx context.Context) error) {
	w.g.Go(func() error {
		err := load(w.ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, backend.ErrSessionExpired) {
			return err
		}
		w.logger.Warn("dashboard widget failed", slog.String("widget", name), slog.Any("error", err))
		w.mu.Lock()
		w.errs[name] = shared.UserSafeMessage(err)
		w.mu.Unlock()
		return nil
	})
}

// Build loads the dashboard for role.
func (s *Service) Build(ctx context.Context, role rbac.Role) (View, error) {
	v := View{Role: role, Revenue: decimal.Zero, Statuses: orders.Statuses(), GeneratedAt: s.now()}
	g, gctx := errgroup.WithContext(ctx)
	w := &widgets{g: g, ctx: gctx, logger: s.logger, errs: make(map[string]string)}

	switch role {
	case rbac.RoleAdmin:
		s.adminWidgets(w, &v)
	case rbac.RoleStaff:
		s.staffWidgets(w, &v)
	case rbac.RoleSupplier:
		s.supplierWidgets(w, &v)
	default:
		s.customerWidgets(w, &v)
	}
	if err := g.Wait(); err != nil {
		return View{}, err
	}
	v.Errors = w.errs
	return v, nil
}

func (s *Service) adminWidgets(w *widgets, v *View) {
	w.run("inventory", func(ctx context.Context) error {
		snap, err := s.src.Inventory.Current(ctx)
		if err != nil {
			return err
		}
		v.Counts = snap.Counts
		v.Alerts = head(snap.Alerts, recentLimit)
		return nil
	})
	w.run("orders", func(ctx context.Context) error {
		items, err := s.src.Orders.List(ctx)
		if err != nil {
			return err
		}
		v.PendingOrders = len(orders.Filter(items, orders.StatusPending))
		return nil
	})
	w.run("revenue", func(ctx context.Context) error {
		items, err := s.src.Payments.Transactions(ctx, payments.TransactionFilter{})
		if err != nil {
			return err
		}
		v.Revenue = payments.Revenue(items)
		v.RevenueChart, err = revenueChart(payments.RevenueByMonth(items, revenueMonths, s.now()))
		return err
	})
	w.run("staff", func(ctx context.Context) error {
		n, err := s.src.Users.Count(ctx, rbac.RoleStaff)
		if err != nil {
			return err
		}
		v.StaffCount = n
		return nil
	})
	w.run("leave", func(ctx context.Context) error {
		n, err := s.src.Staff.PendingLeave(ctx)
		if err != nil {
			return err
		}
		v.PendingLeave = n
		return nil
	})
	s.announcementWidget(w, v)
}

func (s *Service) staffWidgets(w *widgets, v *View) {
	w.run("inventory", func(ctx context.Context) error {
		snap, err := s.src.Inventory.Current(ctx)
		if err != nil {
			return err
		}
		v.Counts = snap.Counts
		v.Alerts = head(snap.Alerts, recentLimit)
		return nil
	})
	w.run("leave", func(ctx context.Context) error {
		items, err := s.src.Staff.MyLeave(ctx)
		if err != nil {
			return err
		}
		v.MyLeave = head(items, recentLimit)
		return nil
	})
	w.run("salary", func(ctx context.Context) error {
		items, err := s.src.Staff.MySalary(ctx)
		if err != nil {
			return err
		}
		v.MySalary = head(items, 3)
		return nil
	})
	s.announcementWidget(w, v)
}

func (s *Service) supplierWidgets(w *widgets, v *View) {
	w.run("orders", func(ctx context.Context) error {
		items, err := s.src.Orders.ForSupplier(ctx)
		if err != nil {
			return err
		}
		v.OrderCounts = orders.CountByStatus(items)
		v.PendingOrders = v.OrderCounts[orders.StatusPending]
		v.RecentOrders = head(items, recentLimit)
		return nil
	})
	s.announcementWidget(w, v)
}

func (s *Service) customerWidgets(w *widgets, v *View) {
	w.run("purchases", func(ctx context.Context) error {
		items, err := s.src.Purchases.Mine(ctx)
		if err != nil {
			return err
		}
		v.Purchases = head(items, recentLimit)
		return nil
	})
	s.announcementWidget(w, v)
}

func (s *Service) announcementWidget(w *widgets, v *View) {
	w.run("announcements", func(ctx context.Context) error {
		items, err := s.src.Announcements.Visible(ctx, v.Role, recentLimit)
		if err != nil {
			return err
		}
		v.Announcements = items
		return nil
	})
}

func revenueChart(months []payments.MonthTotal) (template.HTML, error) {
	values := make([]float64, len(months))
	labels := make([]string, len(months))
	for i, m := range months {
		values[i] = m.Total.InexactFloat64()
		labels[i] = m.Label()
	}
	return chart.Bars(0, 0, values, labels, chart.BarOpts{
		Title:       "Revenue by month",
		Description: "Completed sales for the last six months",
	})
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
