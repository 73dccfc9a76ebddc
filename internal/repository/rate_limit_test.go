package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

func newTestRateLimitRepository(t *testing.T) (RateLimitRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRateLimitRepository(rdb, logger.NewNop()), mr
}

func TestRateLimitRepository_GetAbsentKeyIsZero(t *testing.T) {
	repo, _ := newTestRateLimitRepository(t)

	count, err := repo.Get(context.Background(), "login:ratelimit:1.2.3.4")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Get() = %d, want 0", count)
	}
}

func TestRateLimitRepository_IncrementSetsTTLOnFirstWrite(t *testing.T) {
	repo, mr := newTestRateLimitRepository(t)
	ctx := context.Background()
	key := "login:ratelimit:1.2.3.4"

	count, err := repo.Increment(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Increment() = %d, want 1", count)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("TTL after first increment = %v, want 1m", ttl)
	}
}

func TestRateLimitRepository_IncrementDoesNotRearmTTL(t *testing.T) {
	repo, mr := newTestRateLimitRepository(t)
	ctx := context.Background()
	key := "comment_rate_limit:42"

	if _, err := repo.Increment(ctx, key, time.Minute); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	mr.FastForward(20 * time.Second)

	count, err := repo.Increment(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Increment() = %d, want 2", count)
	}
	if ttl := mr.TTL(key); ttl != 40*time.Second {
		t.Errorf("TTL after second increment = %v, want 40s", ttl)
	}

	ttl, err := repo.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl != 40*time.Second {
		t.Errorf("TTL() = %v, want 40s", ttl)
	}
}

func TestRateLimitRepository_WindowExpiryStartsNewWindow(t *testing.T) {
	repo, mr := newTestRateLimitRepository(t)
	ctx := context.Background()
	key := "login:ratelimit:5.6.7.8"

	for i := 0; i < 3; i++ {
		if _, err := repo.Increment(ctx, key, time.Minute); err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
	}
	mr.FastForward(time.Minute)

	if count, _ := repo.Get(ctx, key); count != 0 {
		t.Errorf("Get() after expiry = %d, want 0", count)
	}
	if ttl, _ := repo.TTL(ctx, key); ttl != 0 {
		t.Errorf("TTL() after expiry = %v, want 0", ttl)
	}
	count, err := repo.Increment(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Increment() after expiry = %d, want 1", count)
	}
}

func TestRateLimitRepository_IncrementRepairsKeyWithoutTTL(t *testing.T) {
	repo, mr := newTestRateLimitRepository(t)
	key := "login:ratelimit:9.9.9.9"
	if err := mr.Set(key, "3"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, err := repo.Increment(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 4 {
		t.Errorf("Increment() = %d, want 4", count)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
}

func TestRateLimitRepository_Delete(t *testing.T) {
	repo, mr := newTestRateLimitRepository(t)
	ctx := context.Background()
	key := "login:ratelimit:1.1.1.1"

	_, _ = repo.Increment(ctx, key, time.Minute)
	if err := repo.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists(key) {
		t.Error("key still exists after Delete()")
	}
	if err := repo.Delete(ctx, key); err != nil {
		t.Errorf("Delete() of absent key error = %v", err)
	}
}

func TestRateLimitRepository_ConcurrentIncrementsAreNotLost(t *testing.T) {
	repo, _ := newTestRateLimitRepository(t)
	ctx := context.Background()
	key := "comment_rate_limit:concurrent"
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Increment(ctx, key, time.Hour); err != nil {
				t.Errorf("Increment() error = %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if count != n {
		t.Errorf("Get() = %d, want %d", count, n)
	}
}

func TestRateLimitRepository_StoreDownWrapsStoreUnavailable(t *testing.T) {
	repo, mr := newTestRateLimitRepository(t)
	mr.Close()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "k"); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("Get() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := repo.Increment(ctx, "k", time.Minute); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("Increment() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := repo.TTL(ctx, "k"); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("TTL() error = %v, want ErrStoreUnavailable", err)
	}
	if err := repo.Delete(ctx, "k"); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("Delete() error = %v, want ErrStoreUnavailable", err)
	}
}
