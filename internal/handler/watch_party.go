package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jutjubic/internal/middleware"
	"jutjubic/internal/service"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

type WatchPartyHandler struct {
	watchParty service.WatchPartyService
	log        logger.Logger
}

func NewWatchPartyHandler(watchParty service.WatchPartyService, log logger.Logger) *WatchPartyHandler {
	return &WatchPartyHandler{
		watchParty: watchParty,
		log:        log,
	}
}

func (h *WatchPartyHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	room := h.watchParty.Create(c.Request.Context(), user.Ref())
	c.JSON(http.StatusCreated, room)
}

func (h *WatchPartyHandler) Join(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	room, err := h.watchParty.Join(c.Request.Context(), c.Param("roomId"), user.Ref())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *WatchPartyHandler) Get(c *gin.Context) {
	room, err := h.watchParty.Get(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *WatchPartyHandler) Leave(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	closed, err := h.watchParty.Leave(c.Request.Context(), c.Param("roomId"), user.Ref())
	if err != nil {
		_ = c.Error(err)
		return
	}

	message := "Left room"
	if closed {
		message = "Room closed"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "closed": closed})
}
