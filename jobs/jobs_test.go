package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/grocerops/grocerops/internal/inventory"
	jobmetrics "github.com/grocerops/grocerops/internal/jobs"
	"github.com/grocerops/grocerops/internal/platform/backend"
)

type fakeScanner struct {
	token string
	res   inventory.ScanResult
	err   error
}

func (f *fakeScanner) Scan(ctx context.Context) (inventory.ScanResult, error) {
	if tokens := backend.TokensFromContext(ctx); tokens != nil {
		f.token, _ = tokens.Tokens()
	}
	return f.res, f.err
}

type fakePruner struct {
	retention time.Duration
	removed   int64
}

func (f *fakePruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return f.removed, nil
}

func TestAlertScanJobUsesServiceToken(t *testing.T) {
	scanner := &fakeScanner{res: inventory.ScanResult{Raised: []inventory.Alert{{Kind: inventory.KindLowStock, ProductName: "Milk"}}}}
	job := NewAlertScanJob(scanner, "svc-token", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewAlertScanTask("cron")
	require.NoError(t, err)
	require.Equal(t, TaskInventoryAlertScan, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "svc-token", scanner.token)
}

func TestAlertScanJobSkipsWithoutToken(t *testing.T) {
	job := NewAlertScanJob(&fakeScanner{}, "", nil, nil)
	task, err := NewAlertScanTask("cron")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestAlertScanJobDoesNotRetryRejectedToken(t *testing.T) {
	job := NewAlertScanJob(&fakeScanner{err: backend.ErrSessionExpired}, "bad", nil, nil)
	task, err := NewAlertScanTask("cron")
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, backend.ErrSessionExpired)

	job.Scanner = &fakeScanner{err: backend.ErrUnavailable}
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, backend.ErrUnavailable)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestAlertScanJobRejectsBadPayload(t *testing.T) {
	job := NewAlertScanJob(&fakeScanner{}, "t", nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskInventoryAlertScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAlertPruneJobRetention(t *testing.T) {
	pruner := &fakePruner{removed: 4}
	job := NewAlertPruneJob(pruner, 48*time.Hour, nil, nil)

	task := asynq.NewTask(TaskInventoryAlertPrune, []byte(`{}`))
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, pruner.retention)

	task, err := NewAlertPruneTask(10 * 24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 240*time.Hour, pruner.retention)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var body QueueHealth
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}
