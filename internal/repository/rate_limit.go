package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

// RateLimitRepository is a fixed-window counter store.
// Absent keys read as zero. Every error wraps apperrors.ErrStoreUnavailable.
type RateLimitRepository interface {
	Get(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, key string) error
}

// incrementScript attaches the window TTL on the write that creates the key and
// never touches it afterwards. A key found without a TTL gets one so it cannot live forever.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) == -1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

type rateLimitRepository struct {
	redis redis.UniversalClient
	log   logger.Logger
}

func NewRateLimitRepository(redis redis.UniversalClient, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Get(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		r.log.Error("Failed to read rate limit counter", "key", key, "error", err)
		return 0, storeErr("get", key, err)
	}
	return count, nil
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := incrementScript.Run(ctx, r.redis, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		r.log.Error("Failed to increment rate limit counter", "key", key, "error", err)
		return 0, storeErr("increment", key, err)
	}
	return count, nil
}

// TTL returns zero when the key is absent or carries no expiry.
func (r *rateLimitRepository) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.redis.PTTL(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to read rate limit ttl", "key", key, "error", err)
		return 0, storeErr("ttl", key, err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *rateLimitRepository) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		r.log.Error("Failed to delete rate limit counter", "key", key, "error", err)
		return storeErr("delete", key, err)
	}
	return nil
}

func storeErr(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, apperrors.ErrStoreUnavailable, err)
}
