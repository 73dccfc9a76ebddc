package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"jutjubic/internal/domain"
	"jutjubic/internal/middleware"
	"jutjubic/internal/service"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

type inboundPlayEvent struct {
	Type            string  `json:"type"`
	RoomID          string  `json:"room_id"`
	VideoID         int64   `json:"video_id"`
	PositionSeconds float64 `json:"position_seconds"`
}

type WebSocketHandler struct {
	hub      service.PlaybackHub
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(hub service.PlaybackHub, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return &WebSocketHandler{
		hub:      hub,
		upgrader: upgrader,
		log:      log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no Origin
		return origin == "" || set[origin]
	}
}

// HandleWatchParty subscribes the caller to a room's playback topic.
func (h *WebSocketHandler) HandleWatchParty(c *gin.Context) {
	roomID := c.Param("roomId")
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	sub, err := h.hub.Subscribe(roomID, user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.Unsubscribe(sub)
		h.log.Warn("Failed to upgrade connection", "room_id", roomID, "error", err)
		return
	}

	h.log.Info("Watch party subscriber connected", "room_id", roomID, "user_id", user.ID)
	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

func (h *WebSocketHandler) readPump(conn *websocket.Conn, sub *service.Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inboundPlayEvent
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Unexpected websocket close", "room_id", sub.RoomID(), "error", err)
			}
			return
		}

		if in.Type != domain.PlayEventPlay && in.Type != domain.PlayEventPause {
			h.log.Debug("Ignoring unsupported frame", "room_id", sub.RoomID(), "type", in.Type)
			continue
		}
		if in.RoomID == "" {
			in.RoomID = sub.RoomID()
		}
		if in.RoomID != sub.RoomID() {
			h.log.Debug("Ignoring frame for another room", "room_id", sub.RoomID(), "target", in.RoomID)
			continue
		}

		_, err := h.hub.Relay(domain.PlayEvent{
			Type:            in.Type,
			RoomID:          in.RoomID,
			VideoID:         in.VideoID,
			PositionSeconds: in.PositionSeconds,
		})
		if err != nil && !errors.Is(err, apperrors.ErrRoomNotFound) {
			h.log.Warn("Failed to relay playback event", "room_id", in.RoomID, "error", err)
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, sub *service.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
