package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/grocerops/grocerops/internal/jobs"
)

// Pruner deletes closed alerts older than retention.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AlertPruneJob keeps the alert history bounded.
type AlertPruneJob struct {
	Pruner    Pruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAlertPruneJob initialises the prune handler.
func NewAlertPruneJob(pruner Pruner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertPruneJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &AlertPruneJob{Pruner: pruner, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle executes a prune task.
func (j *AlertPruneJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Pruner == nil {
		return errors.New("alert prune: handler not configured")
	}
	var payload AlertPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention(j.Retention)

	tracker := j.Metrics.Track(TaskInventoryAlertPrune)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Pruner.Prune(ctx, retention)
	if err != nil {
		j.logger().Error("alert prune failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddItems(TaskInventoryAlertPrune, "pruned", int(removed))
	j.logger().Info("pruned inventory alerts",
		slog.Int64("removed", removed),
		slog.Duration("retention", retention))
	return nil
}

func (j *AlertPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
