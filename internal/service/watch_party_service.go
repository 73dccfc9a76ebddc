package service

import (
	"context"

	"jutjubic/internal/domain"
	"jutjubic/pkg/logger"
)

// WatchPartyService layers playback notification and auditing over the registry.
type WatchPartyService interface {
	Create(ctx context.Context, owner domain.UserRef) domain.WatchPartyRoom
	Join(ctx context.Context, roomID string, user domain.UserRef) (domain.WatchPartyRoom, error)
	Get(ctx context.Context, roomID string) (domain.WatchPartyRoom, error)
	Leave(ctx context.Context, roomID string, user domain.UserRef) (closed bool, err error)
}

type watchPartyService struct {
	registry WatchPartyRegistry
	hub      PlaybackHub
	audit    AuditService
	log      logger.Logger
}

func NewWatchPartyService(registry WatchPartyRegistry, hub PlaybackHub, audit AuditService, log logger.Logger) WatchPartyService {
	return &watchPartyService{
		registry: registry,
		hub:      hub,
		audit:    audit,
		log:      log,
	}
}

func (s *watchPartyService) Create(ctx context.Context, owner domain.UserRef) domain.WatchPartyRoom {
	room := s.registry.CreateRoom(owner)
	s.audit.LogEvent(ctx, AuditEvent{
		Type:    domain.EventTypeWatchPartyCreated,
		ActorID: owner.ID,
		RoomID:  room.RoomID,
	})
	return room
}

func (s *watchPartyService) Join(_ context.Context, roomID string, user domain.UserRef) (domain.WatchPartyRoom, error) {
	return s.registry.JoinRoom(roomID, user)
}

func (s *watchPartyService) Get(_ context.Context, roomID string) (domain.WatchPartyRoom, error) {
	return s.registry.GetRoom(roomID)
}

func (s *watchPartyService) Leave(ctx context.Context, roomID string, user domain.UserRef) (bool, error) {
	closed, err := s.registry.LeaveRoom(roomID, user)
	if err != nil || !closed {
		return closed, err
	}

	s.hub.CloseRoom(roomID)
	s.audit.LogEvent(ctx, AuditEvent{
		Type:    domain.EventTypeWatchPartyClosed,
		ActorID: user.ID,
		RoomID:  roomID,
	})
	return true, nil
}
