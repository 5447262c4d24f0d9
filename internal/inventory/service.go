package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/products"
)

// ProductSource lists the catalogue.
type ProductSource interface {
	All(ctx context.Context) ([]products.Product, error)
}

// OrderSource lists restock orders.
type OrderSource interface {
	List(ctx context.Context) ([]orders.Order, error)
}

// Observer receives the outcome of every scan.
type Observer interface {
	ObserveInventory(counts Counts, alerts map[AlertKind]int, raised int)
}

// Deps groups the collaborators of Service. Store, Repo and Observer are optional.
type Deps struct {
	Products ProductSource
	Orders   OrderSource
	Store    SnapshotStore
	Repo     AlertRepository
	Observer Observer
	Logger   *slog.Logger
	Rules    Rules
	// MaxAge is how old a stored snapshot may be before Current rescans.
	MaxAge time.Duration
}

// ScanResult describes one pass of the alerting pipeline.
type ScanResult struct {
	Snapshot Snapshot
	Raised   []Alert
	Recorded int
	Resolved int64
}

// Service runs the reconciliation and alerting pipeline.
type Service struct {
	deps  Deps
	now   func() time.Time
	group singleflight.Group
}

// NewService constructs Service.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxAge <= 0 {
		deps.MaxAge = time.Minute
	}
	return &Service{deps: deps, now: time.Now}
}

// Rules returns the configured thresholds.
func (s *Service) Rules() Rules {
	return s.deps.Rules
}

// Scan refetches products and orders, analyses them and records newly
// raised alerts. The new snapshot replaces the stored one wholesale.
func (s *Service) Scan(ctx context.Context) (ScanResult, error) {
	var (
		items     []products.Product
		orderList []orders.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.deps.Products.All(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		orderList, err = s.deps.Orders.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ScanResult{}, fmt.Errorf("inventory scan: %w", err)
	}

	now := s.now()
	snap := Analyze(items, orderList, now, s.deps.Rules)
	res := ScanResult{Snapshot: snap}

	var previous *Snapshot
	if s.deps.Store != nil {
		prev, err := s.deps.Store.Load(ctx)
		if err != nil {
			s.deps.Logger.Warn("load inventory snapshot", slog.Any("error", err))
		}
		previous = prev
	}
	res.Raised = Reconcile(previous, snap)

	// The snapshot is stored only once history is written, otherwise a failed
	// write would mark its alerts as seen and the next scan would skip them.
	if s.deps.Repo != nil {
		recorded, err := s.deps.Repo.Record(ctx, res.Raised)
		if err != nil {
			return res, fmt.Errorf("record alerts: %w", err)
		}
		res.Recorded = recorded
		resolved, err := s.deps.Repo.Resolve(ctx, snap.Fingerprints(), now)
		if err != nil {
			return res, fmt.Errorf("resolve alerts: %w", err)
		}
		res.Resolved = resolved
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Save(ctx, snap); err != nil {
			s.deps.Logger.Warn("save inventory snapshot", slog.Any("error", err))
		}
	}
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveInventory(snap.Counts, snap.AlertsByKind(), len(res.Raised))
	}
	return res, nil
}

// Current returns the stored snapshot when it is fresh enough and scans
// otherwise. Concurrent callers share one scan, which runs detached from the
// first caller's cancellation. When the scan fails for any reason other than
// the caller's own expired session the stale snapshot is served.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	var stale *Snapshot
	if s.deps.Store != nil {
		snap, err := s.deps.Store.Load(ctx)
		if err != nil {
			s.deps.Logger.Warn("load inventory snapshot", slog.Any("error", err))
		}
		if snap != nil {
			if s.now().Sub(snap.TakenAt) <= s.deps.MaxAge {
				return *snap, nil
			}
			stale = snap
		}
	}
	v, err, _ := s.group.Do("scan", func() (any, error) {
		res, err := s.Scan(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return res.Snapshot, nil
	})
	if err != nil && errors.Is(err, backend.ErrSessionExpired) && !sessionExpired(ctx) {
		err = fmt.Errorf("%w: shared scan lost its credentials", ErrScanUnavailable)
	}
	if err != nil {
		if stale != nil && !errors.Is(err, backend.ErrSessionExpired) {
			s.deps.Logger.Warn("serving stale inventory snapshot", slog.Any("error", err))
			return *stale, nil
		}
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// sessionExpired reports whether the credentials bound to ctx are gone. A
// shared scan that expired someone else's session leaves them intact.
func sessionExpired(ctx context.Context) bool {
	tokens := backend.TokensFromContext(ctx)
	if tokens == nil {
		return true
	}
	access, _ := tokens.Tokens()
	return access == ""
}

// Alerts returns alert history. Without a repository the live alerts of the
// current snapshot are returned instead.
func (s *Service) Alerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	if s.deps.Repo == nil {
		snap, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		return snap.Alerts, nil
	}
	return s.deps.Repo.List(ctx, filter)
}

// Acknowledge marks alert id as handled by actor.
func (s *Service) Acknowledge(ctx context.Context, id int64, actor string) error {
	if s.deps.Repo == nil {
		return ErrAlertNotFound
	}
	return s.deps.Repo.Acknowledge(ctx, id, actor, s.now())
}

// Prune removes closed alerts older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if s.deps.Repo == nil {
		return 0, nil
	}
	return s.deps.Repo.Prune(ctx, s.now().Add(-retention))
}
