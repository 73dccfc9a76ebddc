package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"jutjubic/internal/domain"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

func newTestHub(t *testing.T) (PlaybackHub, WatchPartyRegistry) {
	t.Helper()
	reg := NewWatchPartyRegistry(logger.NewNop())
	hub := NewPlaybackHub(reg, logger.NewNop())
	t.Cleanup(hub.Close)
	return hub, reg
}

func receiveEvent(t *testing.T, sub *Subscriber) domain.PlayEvent {
	t.Helper()
	select {
	case raw, ok := <-sub.Messages():
		if !ok {
			t.Fatal("subscriber channel closed before event arrived")
		}
		var evt domain.PlayEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return evt
	default:
		t.Fatal("no event queued for subscriber")
	}
	return domain.PlayEvent{}
}

func TestPlaybackHub_SubscribeUnknownRoom(t *testing.T) {
	hub, _ := newTestHub(t)

	_, err := hub.Subscribe("missing", uuid.New())
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		t.Errorf("Subscribe() error = %v, want ErrRoomNotFound", err)
	}
}

func TestPlaybackHub_RelayReachesEverySubscriber(t *testing.T) {
	hub, reg := newTestHub(t)
	room := reg.CreateRoom(testUser("owner"))
	other := reg.CreateRoom(testUser("other"))

	a, _ := hub.Subscribe(room.RoomID, uuid.New())
	b, _ := hub.Subscribe(room.RoomID, uuid.New())
	outsider, _ := hub.Subscribe(other.RoomID, uuid.New())

	n, err := hub.Relay(domain.PlayEvent{Type: domain.PlayEventPlay, RoomID: room.RoomID, VideoID: 42})
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Relay() delivered = %d, want 2", n)
	}

	for _, sub := range []*Subscriber{a, b} {
		evt := receiveEvent(t, sub)
		if evt.Type != domain.PlayEventPlay || evt.VideoID != 42 || evt.RoomID != room.RoomID {
			t.Errorf("event = %+v", evt)
		}
	}
	if len(outsider.Messages()) != 0 {
		t.Error("event leaked to subscriber of another room")
	}
}

func TestPlaybackHub_RelayDroppedWhenRoomGone(t *testing.T) {
	hub, reg := newTestHub(t)
	owner := testUser("owner")
	room := reg.CreateRoom(owner)
	sub, _ := hub.Subscribe(room.RoomID, uuid.New())

	if _, err := reg.LeaveRoom(room.RoomID, owner); err != nil {
		t.Fatalf("LeaveRoom() error = %v", err)
	}

	n, err := hub.Relay(domain.PlayEvent{Type: domain.PlayEventPlay, RoomID: room.RoomID, VideoID: 1})
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		t.Errorf("Relay() error = %v, want ErrRoomNotFound", err)
	}
	if n != 0 {
		t.Errorf("Relay() delivered = %d, want 0", n)
	}
	if len(sub.Messages()) != 0 {
		t.Error("event delivered for closed room")
	}
}

func TestPlaybackHub_CloseRoom(t *testing.T) {
	hub, reg := newTestHub(t)
	room := reg.CreateRoom(testUser("owner"))
	sub, _ := hub.Subscribe(room.RoomID, uuid.New())

	hub.CloseRoom(room.RoomID)

	evt := receiveEvent(t, sub)
	if evt.Type != domain.PlayEventRoomClosed {
		t.Errorf("event type = %q, want %q", evt.Type, domain.PlayEventRoomClosed)
	}
	if _, ok := <-sub.Messages(); ok {
		t.Error("subscriber channel still open after CloseRoom()")
	}
	if hub.Subscribers(room.RoomID) != 0 {
		t.Errorf("Subscribers() = %d, want 0", hub.Subscribers(room.RoomID))
	}
}

func TestPlaybackHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub, reg := newTestHub(t)
	room := reg.CreateRoom(testUser("owner"))
	sub, _ := hub.Subscribe(room.RoomID, uuid.New())

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)

	if _, ok := <-sub.Messages(); ok {
		t.Error("channel open after Unsubscribe()")
	}
	if hub.Subscribers(room.RoomID) != 0 {
		t.Errorf("Subscribers() = %d, want 0", hub.Subscribers(room.RoomID))
	}
}

func TestPlaybackHub_SlowSubscriberIsDropped(t *testing.T) {
	hub, reg := newTestHub(t)
	room := reg.CreateRoom(testUser("owner"))
	slow, _ := hub.Subscribe(room.RoomID, uuid.New())

	evt := domain.PlayEvent{Type: domain.PlayEventPlay, RoomID: room.RoomID, VideoID: 7}
	for i := 0; i < subscriberBuffer; i++ {
		if _, err := hub.Relay(evt); err != nil {
			t.Fatalf("Relay() error = %v", err)
		}
	}
	if hub.Subscribers(room.RoomID) != 1 {
		t.Fatalf("subscriber dropped before buffer filled")
	}

	n, _ := hub.Relay(evt)
	if n != 0 {
		t.Errorf("Relay() delivered = %d to full subscriber", n)
	}
	if hub.Subscribers(room.RoomID) != 0 {
		t.Error("slow subscriber was not dropped")
	}

	drained := 0
	for range slow.Messages() {
		drained++
	}
	if drained != subscriberBuffer {
		t.Errorf("drained %d buffered events, want %d", drained, subscriberBuffer)
	}
}

func TestPlaybackHub_SubscribeAfterClose(t *testing.T) {
	hub, reg := newTestHub(t)
	room := reg.CreateRoom(testUser("owner"))
	sub, _ := hub.Subscribe(room.RoomID, uuid.New())

	hub.Close()

	if _, ok := <-sub.Messages(); ok {
		t.Error("channel open after Close()")
	}
	if _, err := hub.Subscribe(room.RoomID, uuid.New()); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Subscribe() error = %v, want ErrHubClosed", err)
	}
}

// leavingRegistry runs beforeFirstCheck once, after the first RoomExists
// lookup has answered, to reproduce an owner leaving mid-subscribe.
type leavingRegistry struct {
	WatchPartyRegistry
	fired            bool
	beforeFirstCheck func()
}

func (r *leavingRegistry) RoomExists(roomID string) bool {
	exists := r.WatchPartyRegistry.RoomExists(roomID)
	if !r.fired {
		r.fired = true
		r.beforeFirstCheck()
	}
	return exists
}

func TestPlaybackHub_SubscribeRacingOwnerLeave(t *testing.T) {
	inner := NewWatchPartyRegistry(logger.NewNop())
	owner := testUser("owner")
	room := inner.CreateRoom(owner)

	reg := &leavingRegistry{WatchPartyRegistry: inner}
	hub := NewPlaybackHub(reg, logger.NewNop())
	t.Cleanup(hub.Close)
	svc := NewWatchPartyService(reg, hub, NewAuditService(&recordingAuditRepository{}, logger.NewNop()), logger.NewNop())
	reg.beforeFirstCheck = func() {
		if _, err := svc.Leave(context.Background(), room.RoomID, owner); err != nil {
			t.Errorf("Leave() error = %v", err)
		}
	}

	sub, err := hub.Subscribe(room.RoomID, uuid.New())
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		t.Fatalf("Subscribe() = %v, %v; want ErrRoomNotFound", sub, err)
	}
	if n := hub.Subscribers(room.RoomID); n != 0 {
		t.Errorf("Subscribers() = %d after room closed, want 0", n)
	}
}
