package service

import (
	"context"
	"time"

	"jutjubic/internal/config"
	"jutjubic/internal/domain"
	"jutjubic/internal/metrics"
	"jutjubic/internal/repository"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

const (
	LoginRateLimitPrefix   = "login:ratelimit:"
	CommentRateLimitPrefix = "comment_rate_limit:"
)

// RateLimitPolicy configures one fixed-window limiter instance.
type RateLimitPolicy struct {
	Name        string
	Prefix      string
	MaxAttempts int
	Window      time.Duration
	// FailOpen lets subjects through when the counter store cannot be reached.
	FailOpen     bool
	StoreTimeout time.Duration
}

func LoginRateLimitPolicy(cfg config.RateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{
		Name:         domain.RateLimitScopeLogin,
		Prefix:       LoginRateLimitPrefix,
		MaxAttempts:  cfg.Login.MaxAttempts,
		Window:       cfg.Login.Window,
		FailOpen:     cfg.FailOpen,
		StoreTimeout: cfg.StoreTimeout,
	}
}

func CommentRateLimitPolicy(cfg config.RateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{
		Name:         domain.RateLimitScopeComment,
		Prefix:       CommentRateLimitPrefix,
		MaxAttempts:  cfg.Comment.MaxAttempts,
		Window:       cfg.Comment.Window,
		FailOpen:     cfg.FailOpen,
		StoreTimeout: cfg.StoreTimeout,
	}
}

// RateLimiter counts attempts per subject (client IP, user id) inside a fixed window.
type RateLimiter interface {
	IsLimitExceeded(ctx context.Context, subject string) bool
	IncrementAttempt(ctx context.Context, subject string) (int64, error)
	RemainingAttempts(ctx context.Context, subject string) int
	TimeUntilReset(ctx context.Context, subject string) time.Duration
	Reset(ctx context.Context, subject string) error
	// Check returns a *apperrors.RateLimitError when the subject is blocked.
	Check(ctx context.Context, subject string) error
	Status(ctx context.Context, subject string) domain.RateLimitStatus
	Policy() RateLimitPolicy
}

type rateLimiter struct {
	repo   repository.RateLimitRepository
	policy RateLimitPolicy
	log    logger.Logger
}

func NewRateLimiter(repo repository.RateLimitRepository, policy RateLimitPolicy, log logger.Logger) RateLimiter {
	if policy.StoreTimeout <= 0 {
		policy.StoreTimeout = 250 * time.Millisecond
	}
	return &rateLimiter{
		repo:   repo,
		policy: policy,
		log:    log.With("limiter", policy.Name),
	}
}

func (l *rateLimiter) Policy() RateLimitPolicy {
	return l.policy
}

func (l *rateLimiter) key(subject string) string {
	return l.policy.Prefix + subject
}

func (l *rateLimiter) IsLimitExceeded(ctx context.Context, subject string) bool {
	ctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	count, err := l.repo.Get(ctx, l.key(subject))
	if err != nil {
		l.storeFailure("check", subject, err)
		return !l.policy.FailOpen
	}

	l.log.Debug("Checked rate limit", "subject", subject, "attempts", count)
	if count >= int64(l.policy.MaxAttempts) {
		metrics.RateLimitBlocked.WithLabelValues(l.policy.Name).Inc()
		return true
	}
	return false
}

func (l *rateLimiter) IncrementAttempt(ctx context.Context, subject string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	count, err := l.repo.Increment(ctx, l.key(subject), l.policy.Window)
	if err != nil {
		l.storeFailure("increment", subject, err)
		return 0, err
	}

	if count == 1 {
		l.log.Info("First attempt in window", "subject", subject, "window", l.policy.Window)
	} else {
		l.log.Debug("Attempt recorded", "subject", subject, "attempts", count)
	}
	return count, nil
}

func (l *rateLimiter) RemainingAttempts(ctx context.Context, subject string) int {
	ctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	count, err := l.repo.Get(ctx, l.key(subject))
	if err != nil {
		l.storeFailure("remaining", subject, err)
		if l.policy.FailOpen {
			return l.policy.MaxAttempts
		}
		return 0
	}

	remaining := l.policy.MaxAttempts - int(count)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *rateLimiter) TimeUntilReset(ctx context.Context, subject string) time.Duration {
	ctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	ttl, err := l.repo.TTL(ctx, l.key(subject))
	if err != nil {
		l.storeFailure("ttl", subject, err)
		if l.policy.FailOpen {
			return 0
		}
		return l.policy.Window
	}
	return ttl
}

func (l *rateLimiter) Reset(ctx context.Context, subject string) error {
	ctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	if err := l.repo.Delete(ctx, l.key(subject)); err != nil {
		l.storeFailure("reset", subject, err)
		return err
	}
	l.log.Info("Rate limit reset", "subject", subject)
	return nil
}

func (l *rateLimiter) Check(ctx context.Context, subject string) error {
	if !l.IsLimitExceeded(ctx, subject) {
		return nil
	}
	return &apperrors.RateLimitError{
		Limit:      l.policy.MaxAttempts,
		Window:     l.policy.Window,
		Remaining:  0,
		RetryAfter: l.TimeUntilReset(ctx, subject),
	}
}

func (l *rateLimiter) Status(ctx context.Context, subject string) domain.RateLimitStatus {
	return domain.RateLimitStatus{
		Limit:     l.policy.MaxAttempts,
		Remaining: l.RemainingAttempts(ctx, subject),
		ResetIn:   l.TimeUntilReset(ctx, subject),
	}
}

func (l *rateLimiter) storeFailure(op, subject string, err error) {
	metrics.RateLimitStoreErrors.WithLabelValues(l.policy.Name).Inc()
	l.log.Warn("Counter store unavailable, applying failure policy",
		"op", op,
		"subject", subject,
		"fail_open", l.policy.FailOpen,
		"error", err,
	)
}
