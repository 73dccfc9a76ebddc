package handler

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jutjubic/internal/config"
	"jutjubic/internal/service"
	"jutjubic/pkg/logger"
)

type Handlers struct {
	Health     *HealthHandler
	Auth       *AuthHandler
	Comment    *CommentHandler
	WatchParty *WatchPartyHandler
	WebSocket  *WebSocketHandler
}

func NewHandlers(services *service.Services, db *pgxpool.Pool, rdb redis.UniversalClient, cfg *config.Config, log logger.Logger) *Handlers {
	wsOrigins := cfg.WatchParty.AllowedOrigins
	if len(wsOrigins) == 0 {
		wsOrigins = cfg.Server.AllowedOrigins
	}

	return &Handlers{
		Health:     NewHealthHandler(db, rdb, log),
		Auth:       NewAuthHandler(services.Auth, services.LoginLimiter, services.Audit, cfg.RateLimit.LoginResetOnSuccess, log),
		Comment:    NewCommentHandler(services.Comment, log),
		WatchParty: NewWatchPartyHandler(services.WatchParty, log),
		WebSocket:  NewWebSocketHandler(services.PlaybackHub, wsOrigins, log),
	}
}
