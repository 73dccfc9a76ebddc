package service

import (
	"jutjubic/internal/config"
	"jutjubic/internal/repository"
	"jutjubic/pkg/logger"
)

type Services struct {
	Auth         AuthService
	Comment      CommentService
	Audit        AuditService
	LoginLimiter RateLimiter
	WatchParty   WatchPartyService
	Registry     WatchPartyRegistry
	PlaybackHub  PlaybackHub
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	loginLimiter := NewRateLimiter(repos.RateLimit, LoginRateLimitPolicy(cfg.RateLimit), log)
	commentLimiter := NewRateLimiter(repos.RateLimit, CommentRateLimitPolicy(cfg.RateLimit), log)
	registry := NewWatchPartyRegistry(log)
	hub := NewPlaybackHub(registry, log)

	return &Services{
		Auth:         NewAuthService(repos.User, cfg.JWT, log),
		Comment:      NewCommentService(repos.Comment, commentLimiter, audit, log),
		Audit:        audit,
		LoginLimiter: loginLimiter,
		WatchParty:   NewWatchPartyService(registry, hub, audit, log),
		Registry:     registry,
		PlaybackHub:  hub,
	}
}
