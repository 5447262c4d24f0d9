package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grocerops/grocerops/internal/platform/db"
)

// AlertRepository persists alert history.
type AlertRepository interface {
	Record(ctx context.Context, alerts []Alert) (int, error)
	Resolve(ctx context.Context, active []string, at time.Time) (int64, error)
	List(ctx context.Context, filter AlertFilter) ([]Alert, error)
	Acknowledge(ctx context.Context, id int64, actor string, at time.Time) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Repository stores alert history in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const alertColumns = `id, fingerprint, kind, severity, product_id, product_name, sku, quantity, threshold, incoming, expiry_date, message, raised_at, acknowledged_at, COALESCE(acknowledged_by, ''), resolved_at`

// Record inserts alerts, skipping fingerprints that already have an open row.
func (r *Repository) Record(ctx context.Context, alerts []Alert) (int, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	if len(alerts) == 0 {
		return 0, nil
	}
	inserted := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, a := range alerts {
			tag, err := tx.Exec(ctx, `INSERT INTO inventory_alerts (fingerprint, kind, severity, product_id, product_name, sku, quantity, threshold, incoming, expiry_date, message, raised_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (fingerprint) WHERE acknowledged_at IS NULL AND resolved_at IS NULL DO NOTHING`,
				a.Fingerprint, string(a.Kind), string(a.Severity), a.ProductID, a.ProductName, a.SKU,
				a.Quantity, a.Threshold, a.Incoming, a.ExpiryDate, a.Message, a.RaisedAt)
			if err != nil {
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Resolve closes open alerts whose fingerprint is no longer active.
func (r *Repository) Resolve(ctx context.Context, active []string, at time.Time) (int64, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	if active == nil {
		active = []string{}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_alerts SET resolved_at=$2
WHERE resolved_at IS NULL AND acknowledged_at IS NULL AND NOT (fingerprint = ANY($1))`, active, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List returns alert history, newest first.
func (r *Repository) List(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+`
FROM inventory_alerts
WHERE NOT $1 OR (acknowledged_at IS NULL AND resolved_at IS NULL)
ORDER BY raised_at DESC, id DESC
LIMIT $2`, filter.OpenOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		var kind, severity string
		if err := rows.Scan(&a.ID, &a.Fingerprint, &kind, &severity, &a.ProductID, &a.ProductName, &a.SKU,
			&a.Quantity, &a.Threshold, &a.Incoming, &a.ExpiryDate, &a.Message, &a.RaisedAt,
			&a.AcknowledgedAt, &a.AcknowledgedBy, &a.ResolvedAt); err != nil {
			return nil, err
		}
		a.Kind = AlertKind(kind)
		a.Severity = Severity(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Acknowledge marks an open alert as seen by actor.
func (r *Repository) Acknowledge(ctx context.Context, id int64, actor string, at time.Time) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_alerts SET acknowledged_at=$3, acknowledged_by=$2 WHERE id=$1 AND acknowledged_at IS NULL`, id, actor, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// Prune deletes closed alerts raised before the cutoff.
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_alerts WHERE (acknowledged_at IS NOT NULL OR resolved_at IS NOT NULL) AND raised_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
