package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/orders"
	"github.com/grocerops/grocerops/internal/platform/backend"
	"github.com/grocerops/grocerops/internal/products"
)

type stubProducts struct {
	mu    sync.Mutex
	items []products.Product
	err   error
	calls int
}

func (s *stubProducts) All(context.Context) ([]products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.items, s.err
}

type stubOrders struct {
	items []orders.Order
}

func (s *stubOrders) List(context.Context) ([]orders.Order, error) {
	return s.items, nil
}

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []Alert
}

func (r *memoryRepo) Record(_ context.Context, alerts []Alert) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range alerts {
		if r.openLocked(a.Fingerprint) {
			continue
		}
		r.nextID++
		a.ID = r.nextID
		r.rows = append(r.rows, a)
		n++
	}
	return n, nil
}

func (r *memoryRepo) openLocked(fp string) bool {
	for _, row := range r.rows {
		if row.Fingerprint == fp && row.AcknowledgedAt == nil && row.ResolvedAt == nil {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Resolve(_ context.Context, active []string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := map[string]bool{}
	for _, fp := range active {
		keep[fp] = true
	}
	var n int64
	for i := range r.rows {
		if r.rows[i].ResolvedAt == nil && r.rows[i].AcknowledgedAt == nil && !keep[r.rows[i].Fingerprint] {
			r.rows[i].ResolvedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) List(_ context.Context, filter AlertFilter) ([]Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Alert
	for _, row := range r.rows {
		if filter.OpenOnly && (row.AcknowledgedAt != nil || row.ResolvedAt != nil) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memoryRepo) Acknowledge(_ context.Context, id int64, actor string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].AcknowledgedAt == nil {
			r.rows[i].AcknowledgedAt = &at
			r.rows[i].AcknowledgedBy = actor
			return nil
		}
	}
	return ErrAlertNotFound
}

func (r *memoryRepo) Prune(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []Alert
	var n int64
	for _, row := range r.rows {
		closed := row.AcknowledgedAt != nil || row.ResolvedAt != nil
		if closed && row.RaisedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return n, nil
}

type recordingObserver struct {
	raised []int
}

func (o *recordingObserver) ObserveInventory(_ Counts, _ map[AlertKind]int, raised int) {
	o.raised = append(o.raised, raised)
}

func newTestService(t *testing.T, prods *stubProducts) (*Service, *memoryRepo, *recordingObserver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &memoryRepo{}
	obs := &recordingObserver{}
	svc := NewService(Deps{
		Products: prods,
		Orders:   &stubOrders{items: fixtureOrders()},
		Store:    NewRedisStore(client, time.Hour),
		Repo:     repo,
		Observer: obs,
		Rules:    testRules(),
		MaxAge:   time.Minute,
	})
	svc.now = func() time.Time { return testNow }
	return svc, repo, obs, mr
}

func TestScanRecordsOnlyNewAlerts(t *testing.T) {
	prods := &stubProducts{items: fixtureProducts()}
	svc, repo, obs, _ := newTestService(t, prods)
	ctx := context.Background()

	first, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, first.Raised, 5)
	require.Equal(t, 5, first.Recorded)

	second, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, second.Raised)
	require.Equal(t, []int{5, 0}, obs.raised)

	// eggs restocked: its alert resolves, nothing new is raised
	restocked := fixtureProducts()
	restocked[1].Quantity = 40
	prods.items = restocked
	third, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Empty(t, third.Raised)
	require.Equal(t, int64(1), third.Resolved)

	open, err := repo.List(ctx, AlertFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 4)
}

func TestAcknowledgeAndPrune(t *testing.T) {
	svc, repo, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	ctx := context.Background()
	_, err := svc.Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Acknowledge(ctx, 1, "ops@example.com"))
	require.ErrorIs(t, svc.Acknowledge(ctx, 1, "ops@example.com"), ErrAlertNotFound)

	svc.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	pruned, err := svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)
	all, _ := repo.List(ctx, AlertFilter{})
	require.Len(t, all, 4)
}

func TestCurrentServesFreshSnapshotFromStore(t *testing.T) {
	prods := &stubProducts{items: fixtureProducts()}
	svc, _, _, _ := newTestService(t, prods)
	ctx := context.Background()

	snap, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 5)
	require.Equal(t, 1, prods.calls)

	_, err = svc.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, prods.calls)

	svc.now = func() time.Time { return testNow.Add(2 * time.Minute) }
	_, err = svc.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, prods.calls)
}

func TestCurrentFallsBackToStaleSnapshot(t *testing.T) {
	prods := &stubProducts{items: fixtureProducts()}
	svc, _, _, _ := newTestService(t, prods)
	ctx := context.Background()
	_, err := svc.Scan(ctx)
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(time.Hour / 2) }
	prods.err = errors.Join(backend.ErrUnavailable, errors.New("connection refused"))
	snap, err := svc.Current(ctx)
	require.NoError(t, err)
	require.True(t, snap.TakenAt.Equal(testNow))

	prods.err = backend.ErrSessionExpired
	_, err = svc.Current(ctx)
	require.ErrorIs(t, err, backend.ErrSessionExpired)
}

func TestAlertsWithoutRepositoryUseSnapshot(t *testing.T) {
	svc := NewService(Deps{
		Products: &stubProducts{items: fixtureProducts()},
		Orders:   &stubOrders{},
		Rules:    testRules(),
	})
	svc.now = func() time.Time { return testNow }
	alerts, err := svc.Alerts(context.Background(), AlertFilter{OpenOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	require.ErrorIs(t, svc.Acknowledge(context.Background(), 1, "x"), ErrAlertNotFound)
}

func TestMonitorDisabledWithoutToken(t *testing.T) {
	prods := &stubProducts{items: fixtureProducts()}
	svc, _, _, _ := newTestService(t, prods)
	m := NewMonitor(svc, time.Second, "", nil)
	require.False(t, m.Enabled())
	m.Run(context.Background())
	require.Zero(t, prods.calls)
}

func TestMonitorScansUntilCancelled(t *testing.T) {
	prods := &stubProducts{items: fixtureProducts()}
	svc, _, _, _ := newTestService(t, prods)
	m := NewMonitor(svc, 10*time.Millisecond, "service-token", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		prods.mu.Lock()
		defer prods.mu.Unlock()
		return prods.calls >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

type flakyRepo struct {
	memoryRepo
	failures int
}

func (r *flakyRepo) Record(ctx context.Context, alerts []Alert) (int, error) {
	if r.failures > 0 {
		r.failures--
		return 0, errors.New("connection reset by peer")
	}
	return r.memoryRepo.Record(ctx, alerts)
}

func TestScanRetriesAlertsAfterFailedRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := &flakyRepo{failures: 1}
	svc := NewService(Deps{
		Products: &stubProducts{items: fixtureProducts()},
		Orders:   &stubOrders{items: fixtureOrders()},
		Store:    NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour),
		Repo:     repo,
		Rules:    testRules(),
	})
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()

	_, err := svc.Scan(ctx)
	require.Error(t, err)

	second, err := svc.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, second.Raised, 5)
	require.Equal(t, 5, second.Recorded)

	open, err := repo.List(ctx, AlertFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 5)
}

type sessionTokens struct {
	mu     sync.Mutex
	access string
}

func (s *sessionTokens) Tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, "refresh"
}

func (s *sessionTokens) SetTokens(access, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
}

func (s *sessionTokens) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
}

// tokenProducts fails like the backend client does when the caller's
// refresh is rejected: the caller's tokens are cleared.
type tokenProducts struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *tokenProducts) All(ctx context.Context) ([]products.Product, error) {
	p.once.Do(func() { close(p.started) })
	<-p.release
	tokens := backend.TokensFromContext(ctx)
	if access, _ := tokens.Tokens(); access == "expired" {
		tokens.ClearTokens()
		return nil, backend.ErrSessionExpired
	}
	return fixtureProducts(), nil
}

func TestCurrentKeepsOtherSessionsOnSharedExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	prods := &tokenProducts{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(Deps{
		Products: prods,
		Orders:   &stubOrders{items: fixtureOrders()},
		Store:    NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour),
		Rules:    testRules(),
	})
	svc.now = func() time.Time { return testNow }

	expired := &sessionTokens{access: "expired"}
	valid := &sessionTokens{access: "valid"}

	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = svc.Current(backend.WithTokens(context.Background(), expired))
	}()
	<-prods.started
	go func() {
		defer wg.Done()
		_, errB = svc.Current(backend.WithTokens(context.Background(), valid))
	}()
	time.Sleep(20 * time.Millisecond)
	close(prods.release)
	wg.Wait()

	require.ErrorIs(t, errA, backend.ErrSessionExpired)
	require.False(t, errors.Is(errB, backend.ErrSessionExpired))
	access, _ := valid.Tokens()
	require.Equal(t, "valid", access)
}

func TestCurrentScanSurvivesCancelledCaller(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubProducts{items: fixtureProducts()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := svc.Current(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 5)
}
