package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"jutjubic/internal/domain"
	"jutjubic/internal/metrics"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

const subscriberBuffer = 64

var (
	subscriberSeq atomic.Uint64

	ErrHubClosed = errors.New("playback hub closed")
)

// Subscriber is one playback sync connection attached to a room topic.
// The hub closes the channel returned by Messages when the subscription ends.
type Subscriber struct {
	id     uint64
	roomID string
	userID uuid.UUID
	send   chan []byte
}

func (s *Subscriber) ID() uint64 { return s.id }

func (s *Subscriber) RoomID() string { return s.roomID }

func (s *Subscriber) UserID() uuid.UUID { return s.userID }

func (s *Subscriber) Messages() <-chan []byte { return s.send }

// PlaybackHub fans playback events out to the subscribers of a room.
// Events are relayed only while the room is present in the registry.
type PlaybackHub interface {
	Subscribe(roomID string, userID uuid.UUID) (*Subscriber, error)
	Unsubscribe(sub *Subscriber)
	// Relay returns the number of subscribers the event was queued for.
	Relay(event domain.PlayEvent) (int, error)
	CloseRoom(roomID string)
	Subscribers(roomID string) int
	Close()
}

type playbackHub struct {
	mu       sync.RWMutex
	topics   map[string]map[*Subscriber]struct{}
	registry WatchPartyRegistry
	log      logger.Logger
	closed   bool
}

func NewPlaybackHub(registry WatchPartyRegistry, log logger.Logger) PlaybackHub {
	return &playbackHub{
		topics:   make(map[string]map[*Subscriber]struct{}),
		registry: registry,
		log:      log,
	}
}

func (h *playbackHub) Subscribe(roomID string, userID uuid.UUID) (*Subscriber, error) {
	if !h.registry.RoomExists(roomID) {
		return nil, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
	}

	sub := &Subscriber{
		id:     subscriberSeq.Add(1),
		roomID: roomID,
		userID: userID,
		send:   make(chan []byte, subscriberBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	// The owner may have left since the first check. LeaveRoom removes the room
	// before CloseRoom takes h.mu, so this check cannot miss a close.
	if !h.registry.RoomExists(roomID) {
		h.mu.Unlock()
		return nil, fmt.Errorf("room %s: %w", roomID, apperrors.ErrRoomNotFound)
	}
	topic, ok := h.topics[roomID]
	if !ok {
		topic = make(map[*Subscriber]struct{})
		h.topics[roomID] = topic
	}
	topic[sub] = struct{}{}
	h.mu.Unlock()

	metrics.WatchPartySubscribers.Inc()
	h.log.Debug("Playback subscriber attached", "room_id", roomID, "user_id", userID, "subscriber", sub.id)
	return sub, nil
}

func (h *playbackHub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(sub)
}

// detach must be called with h.mu held.
func (h *playbackHub) detach(sub *Subscriber) {
	topic, ok := h.topics[sub.roomID]
	if !ok {
		return
	}
	if _, ok := topic[sub]; !ok {
		return
	}
	delete(topic, sub)
	close(sub.send)
	if len(topic) == 0 {
		delete(h.topics, sub.roomID)
	}
	metrics.WatchPartySubscribers.Dec()
}

func (h *playbackHub) Relay(event domain.PlayEvent) (int, error) {
	if !h.registry.RoomExists(event.RoomID) {
		h.log.Debug("Dropping playback event for unknown room", "room_id", event.RoomID, "type", event.Type)
		return 0, fmt.Errorf("room %s: %w", event.RoomID, apperrors.ErrRoomNotFound)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal play event: %w", err)
	}

	delivered := h.broadcast(event.RoomID, payload)
	metrics.PlayEventsRelayed.Inc()
	h.log.Debug("Playback event relayed", "room_id", event.RoomID, "type", event.Type, "video_id", event.VideoID, "subscribers", delivered)
	return delivered, nil
}

func (h *playbackHub) broadcast(roomID string, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.topics[roomID] {
		select {
		case sub.send <- payload:
			delivered++
		default:
			// slow consumer
			h.log.Warn("Dropping slow playback subscriber", "room_id", roomID, "subscriber", sub.id)
			h.detach(sub)
		}
	}
	return delivered
}

// CloseRoom tells every subscriber the room is gone and ends their subscriptions.
func (h *playbackHub) CloseRoom(roomID string) {
	payload, err := json.Marshal(domain.PlayEvent{Type: domain.PlayEventRoomClosed, RoomID: roomID})
	if err != nil {
		h.log.Error("Failed to encode room_closed event", "room_id", roomID, "error", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	topic := h.topics[roomID]
	count := len(topic)
	for sub := range topic {
		// subscribers are still disconnected when the notice cannot be encoded
		if payload != nil {
			select {
			case sub.send <- payload:
			default:
			}
		}
		h.detach(sub)
	}
	h.log.Info("Playback topic closed", "room_id", roomID, "subscribers", count)
}

func (h *playbackHub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[roomID])
}

func (h *playbackHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, topic := range h.topics {
		for sub := range topic {
			h.detach(sub)
		}
	}
	h.log.Info("Playback hub closed")
}
