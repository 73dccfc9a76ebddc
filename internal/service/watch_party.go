package service

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"jutjubic/internal/domain"
	"jutjubic/internal/metrics"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

// WatchPartyRegistry is the in-memory directory of active watch party rooms.
// Rooms live only in this process: they are lost on restart and are not
// visible to other instances.
type WatchPartyRegistry interface {
	CreateRoom(owner domain.UserRef) domain.WatchPartyRoom
	JoinRoom(roomID string, user domain.UserRef) (domain.WatchPartyRoom, error)
	GetRoom(roomID string) (domain.WatchPartyRoom, error)
	// LeaveRoom reports whether the room was closed because its owner left.
	LeaveRoom(roomID string, user domain.UserRef) (closed bool, err error)
	IsOwner(roomID string, user domain.UserRef) bool
	RoomExists(roomID string) bool
	Count() int
}

type watchPartyRoom struct {
	mu      sync.Mutex
	id      string
	owner   domain.UserRef
	members map[uuid.UUID]domain.UserRef
	order   []uuid.UUID
	// closed is set once the room has been removed from the directory.
	closed bool
}

func (r *watchPartyRoom) snapshot() domain.WatchPartyRoom {
	members := make([]domain.UserRef, 0, len(r.order))
	for _, id := range r.order {
		members = append(members, r.members[id])
	}
	return domain.WatchPartyRoom{
		RoomID:  r.id,
		Owner:   r.owner,
		Members: members,
	}
}

func (r *watchPartyRoom) addMember(user domain.UserRef) {
	if _, ok := r.members[user.ID]; ok {
		return
	}
	r.members[user.ID] = user
	r.order = append(r.order, user.ID)
}

func (r *watchPartyRoom) removeMember(userID uuid.UUID) {
	if _, ok := r.members[userID]; !ok {
		return
	}
	delete(r.members, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

type watchPartyRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*watchPartyRoom
	newID func() string
	log   logger.Logger
}

func NewWatchPartyRegistry(log logger.Logger) WatchPartyRegistry {
	return &watchPartyRegistry{
		rooms: make(map[string]*watchPartyRoom),
		newID: uuid.NewString,
		log:   log,
	}
}

func (r *watchPartyRegistry) CreateRoom(owner domain.UserRef) domain.WatchPartyRoom {
	room := &watchPartyRoom{
		id:      r.newID(),
		owner:   owner,
		members: make(map[uuid.UUID]domain.UserRef),
	}
	room.addMember(owner)

	// Snapshot before publishing so no other goroutine can touch the room yet.
	snap := room.snapshot()

	r.mu.Lock()
	r.rooms[room.id] = room
	metrics.WatchPartyRooms.Set(float64(len(r.rooms)))
	r.mu.Unlock()

	r.log.Info("Watch party room created", "room_id", room.id, "owner_id", owner.ID)
	return snap
}

func (r *watchPartyRegistry) lookup(roomID string) (*watchPartyRoom, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
	}
	return room, nil
}

func (r *watchPartyRegistry) JoinRoom(roomID string, user domain.UserRef) (domain.WatchPartyRoom, error) {
	room, err := r.lookup(roomID)
	if err != nil {
		return domain.WatchPartyRoom{}, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return domain.WatchPartyRoom{}, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
	}
	room.addMember(user)

	r.log.Debug("Joined watch party room", "room_id", roomID, "user_id", user.ID, "members", len(room.order))
	return room.snapshot(), nil
}

func (r *watchPartyRegistry) GetRoom(roomID string) (domain.WatchPartyRoom, error) {
	room, err := r.lookup(roomID)
	if err != nil {
		return domain.WatchPartyRoom{}, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return domain.WatchPartyRoom{}, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
	}
	return room.snapshot(), nil
}

func (r *watchPartyRegistry) LeaveRoom(roomID string, user domain.UserRef) (bool, error) {
	room, err := r.lookup(roomID)
	if err != nil {
		return false, err
	}

	if room.owner.ID != user.ID {
		room.mu.Lock()
		defer room.mu.Unlock()
		if room.closed {
			return false, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
		}
		room.removeMember(user.ID)
		r.log.Debug("Left watch party room", "room_id", roomID, "user_id", user.ID)
		return false, nil
	}

	// Owner leaving closes the room for everyone.
	r.mu.Lock()
	current, ok := r.rooms[roomID]
	if !ok || current != room {
		r.mu.Unlock()
		return false, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
	}
	delete(r.rooms, roomID)
	metrics.WatchPartyRooms.Set(float64(len(r.rooms)))
	r.mu.Unlock()

	room.mu.Lock()
	room.closed = true
	evicted := len(room.order) - 1
	room.mu.Unlock()

	r.log.Info("Watch party room closed by owner", "room_id", roomID, "owner_id", user.ID, "evicted", evicted)
	return true, nil
}

func (r *watchPartyRegistry) IsOwner(roomID string, user domain.UserRef) bool {
	room, err := r.lookup(roomID)
	if err != nil {
		return false
	}
	return room.owner.ID == user.ID
}

func (r *watchPartyRegistry) RoomExists(roomID string) bool {
	r.mu.RLock()
	_, ok := r.rooms[roomID]
	r.mu.RUnlock()
	return ok
}

func (r *watchPartyRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
