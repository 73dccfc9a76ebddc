package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jutjubic/internal/domain"
	"jutjubic/pkg/logger"
)

// AuditRepository is an append-only sink for security events.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

const appendAuditSQL = `
	INSERT INTO audit_log (event_time, actor_user_id, actor_ip, room_id, event_type, payload)
	VALUES (@event_time, @actor_user_id, @actor_ip, @room_id, @event_type, @payload)
	RETURNING id
`

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditLog) error {
	if entry.EventTime.IsZero() {
		entry.EventTime = time.Now().UTC()
	}
	if entry.Payload == nil {
		entry.Payload = map[string]interface{}{}
	}

	args := pgx.NamedArgs{
		"event_time":    entry.EventTime,
		"actor_user_id": entry.ActorUserID,
		"actor_ip":      entry.ActorIP,
		"room_id":       entry.RoomID,
		"event_type":    entry.EventType,
		"payload":       entry.Payload,
	}
	if err := r.db.QueryRow(ctx, appendAuditSQL, args).Scan(&entry.ID); err != nil {
		return fmt.Errorf("append audit event %s: %w", entry.EventType, err)
	}

	r.log.Debug("Audit event stored", "id", entry.ID, "event_type", entry.EventType)
	return nil
}
