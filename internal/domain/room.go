package domain

// WatchPartyRoom is a point-in-time snapshot of a watch party room.
// Members are listed in join order, owner first.
type WatchPartyRoom struct {
	RoomID  string    `json:"room_id"`
	Owner   UserRef   `json:"owner"`
	Members []UserRef `json:"members"`
}

// PlayEvent is the playback command relayed to every subscriber of a room.
// PositionSeconds is optional and lets late subscribers seek.
type PlayEvent struct {
	Type            string  `json:"type"`
	RoomID          string  `json:"room_id"`
	VideoID         int64   `json:"video_id,omitempty"`
	PositionSeconds float64 `json:"position_seconds,omitempty"`
}

const (
	PlayEventPlay       = "play"
	PlayEventPause      = "pause"
	PlayEventRoomClosed = "room_closed"
)
