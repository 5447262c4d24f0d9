package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exportLimit caps unpaged exports.
const exportLimit = 10000

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const windowQuery = `SELECT id, occurred_at, actor_id, actor_role, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3 OR actor_role = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR action ILIKE $5 || '%')
ORDER BY occurred_at DESC, id DESC
OFFSET $6 LIMIT $7`

// Window returns up to limit entries after offset, newest first.
func (r *Repository) Window(ctx context.Context, f Filters, offset, limit int) ([]Entry, error) {
	if r == nil || r.pool == nil {
		return nil, ErrUnavailable
	}
	rows, err := r.pool.Query(ctx, windowQuery,
		optionalTime(f.From), optionalTime(endOfDay(f.To)),
		optionalText(f.Actor), optionalText(f.Entity), optionalText(f.Action),
		offset, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

// All returns every matching entry up to the export cap.
func (r *Repository) All(ctx context.Context, f Filters) ([]Entry, error) {
	return r.Window(ctx, f, 0, exportLimit)
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e    Entry
		at   pgtype.Timestamptz
		meta []byte
	)
	if err := row.Scan(&e.ID, &at, &e.ActorID, &e.ActorRole, &e.Action, &e.Entity, &e.EntityID, &meta); err != nil {
		return Entry{}, err
	}
	if at.Valid {
		e.At = at.Time
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &e.Meta)
	}
	return e, nil
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.AddDate(0, 0, 1)
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
