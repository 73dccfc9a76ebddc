package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jutjubic/pkg/logger"
)

type Repositories struct {
	User      UserRepository
	Comment   CommentRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis redis.UniversalClient, log logger.Logger) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db, log),
		Comment:   NewCommentRepository(db, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}
}
