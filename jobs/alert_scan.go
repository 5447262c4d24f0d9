package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/grocerops/grocerops/internal/inventory"
	jobmetrics "github.com/grocerops/grocerops/internal/jobs"
	"github.com/grocerops/grocerops/internal/platform/backend"
)

// Scanner runs one inventory reconciliation pass.
type Scanner interface {
	Scan(ctx context.Context) (inventory.ScanResult, error)
}

// AlertScanJob scans inventory on behalf of the service account.
type AlertScanJob struct {
	Scanner Scanner
	Token   string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAlertScanJob initialises the scan handler.
func NewAlertScanJob(scanner Scanner, token string, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertScanJob {
	return &AlertScanJob{Scanner: scanner, Token: token, Logger: logger, Metrics: metrics}
}

// Handle executes a scan task.
func (j *AlertScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Scanner == nil {
		return errors.New("alert scan: handler not configured")
	}
	var payload AlertScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.Token == "" {
		j.logger().Warn("alert scan skipped, no service token configured")
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskInventoryAlertScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger().With(slog.String("reason", payload.Reason))
	res, err := j.Scanner.Scan(backend.WithTokens(ctx, backend.StaticToken(j.Token)))
	if err != nil {
		logger.Error("alert scan failed", slog.Any("error", err))
		if errors.Is(err, backend.ErrSessionExpired) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}
	j.Metrics.AddItems(TaskInventoryAlertScan, "raised", len(res.Raised))
	j.Metrics.AddItems(TaskInventoryAlertScan, "resolved", int(res.Resolved))
	for _, a := range res.Raised {
		logger.Warn("inventory alert raised",
			slog.String("kind", string(a.Kind)),
			slog.String("product", a.ProductName),
			slog.String("severity", string(a.Severity)))
	}
	logger.Info("completed alert scan",
		slog.Int("open", len(res.Snapshot.Alerts)),
		slog.Int("raised", len(res.Raised)),
		slog.Int64("resolved", res.Resolved),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *AlertScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
