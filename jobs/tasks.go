package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryAlertScan rescans the catalogue and records new stock alerts.
	TaskInventoryAlertScan = "inventory:alert_scan"
	// TaskInventoryAlertPrune removes closed alerts past their retention.
	TaskInventoryAlertPrune = "inventory:alert_prune"
)

// AlertScanPayload carries the reason a scan was requested.
type AlertScanPayload struct {
	Reason string `json:"reason"`
}

// AlertPrunePayload carries the retention window for pruning.
type AlertPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// Retention returns the payload window, or fallback when unset.
func (p AlertPrunePayload) Retention(fallback time.Duration) time.Duration {
	if p.RetentionHours <= 0 {
		return fallback
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewAlertScanTask constructs an alert scan task.
func NewAlertScanTask(reason string) (*asynq.Task, error) {
	body, err := json.Marshal(AlertScanPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryAlertScan, body, asynq.Queue(QueueDefault)), nil
}

// NewAlertPruneTask constructs an alert prune task.
func NewAlertPruneTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(AlertPrunePayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryAlertPrune, body, asynq.Queue(QueueDefault)), nil
}
