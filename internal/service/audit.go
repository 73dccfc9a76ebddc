package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jutjubic/internal/domain"
	"jutjubic/internal/repository"
	"jutjubic/pkg/logger"
)

const auditWriteTimeout = 2 * time.Second

// AuditEvent describes one security-relevant event. Empty fields are stored as NULL.
type AuditEvent struct {
	Type    string
	ActorID uuid.UUID
	ActorIP string
	RoomID  string
	Payload map[string]interface{}
}

// AuditService appends events to the audit trail. Write failures are logged
// and never surface to the caller.
type AuditService interface {
	LogEvent(ctx context.Context, event AuditEvent)
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, event AuditEvent) {
	payload := event.Payload
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime: time.Now(),
		EventType: event.Type,
		Payload:   payload,
	}
	if event.ActorID != uuid.Nil {
		id := event.ActorID
		auditLog.ActorUserID = &id
	}
	if event.ActorIP != "" {
		ip := event.ActorIP
		auditLog.ActorIP = &ip
	}
	if event.RoomID != "" {
		room := event.RoomID
		auditLog.RoomID = &room
	}

	// the request may already be finished
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.auditRepo.Append(ctx, auditLog); err != nil {
		s.log.Warn("Failed to write audit event", "event_type", event.Type, "error", err)
	}
}
