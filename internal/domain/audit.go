package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorIP     *string                `json:"actor_ip,omitempty"`
	RoomID      *string                `json:"room_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	EventTypeLoginFailed        = "LOGIN_FAILED"
	EventTypeLoginRateLimited   = "LOGIN_RATE_LIMITED"
	EventTypeCommentRateLimited = "COMMENT_RATE_LIMITED"
	EventTypeWatchPartyCreated  = "WATCH_PARTY_CREATED"
	EventTypeWatchPartyClosed   = "WATCH_PARTY_CLOSED"
)
