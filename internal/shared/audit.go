package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents an operator action recorded in audit_logs.
type AuditLog struct {
	ActorID  string
	Role     string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" {
		return errors.New("audit log requires action and entity")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, actor_role, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ActorID, log.Role, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// AuditRecorder is the narrow port consumed by services.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// RecordFromContext fills the actor fields from the session principal in ctx.
func RecordFromContext(ctx context.Context, rec AuditRecorder, action, entity, entityID string, meta map[string]any) error {
	if rec == nil {
		return nil
	}
	p, _ := PrincipalFromContext(ctx)
	return rec.Record(ctx, AuditLog{ActorID: p.ID, Role: p.Role, Action: action, Entity: entity, EntityID: entityID, Meta: meta})
}
