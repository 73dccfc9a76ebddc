package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"jutjubic/pkg/logger"
)

const healthTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    pinger
	redis redis.UniversalClient
	log   logger.Logger
}

func NewHealthHandler(db pinger, redis redis.UniversalClient, log logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, log: log}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "ok", "redis": "ok"}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("Database health check failed", "error", err)
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.log.Warn("Redis health check failed", "error", err)
		checks["redis"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"service": "jutjubic",
		"checks":  checks,
	})
}
