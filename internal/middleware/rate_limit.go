package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"jutjubic/internal/domain"
	"jutjubic/internal/service"
	"jutjubic/pkg/logger"
)

const ContextClientIP = "client_ip"

// LoginGuard rejects login attempts from a client IP whose window is exhausted.
// The handler owns counting failures and resetting on success.
type LoginGuard struct {
	limiter service.RateLimiter
	audit   service.AuditService
	log     logger.Logger
}

func NewLoginGuard(limiter service.RateLimiter, audit service.AuditService, log logger.Logger) *LoginGuard {
	return &LoginGuard{
		limiter: limiter,
		audit:   audit,
		log:     log,
	}
}

func (m *LoginGuard) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c.Request)
		c.Set(ContextClientIP, ip)

		ctx := c.Request.Context()
		if !m.limiter.IsLimitExceeded(ctx, ip) {
			c.Next()
			return
		}

		retryAfter := RetryAfterSeconds(m.limiter.TimeUntilReset(ctx, ip).Seconds())
		m.log.Warn("Login blocked by rate limit", "ip", ip, "retry_after_seconds", retryAfter)
		m.audit.LogEvent(ctx, service.AuditEvent{
			Type:    domain.EventTypeLoginRateLimited,
			ActorIP: ip,
		})

		AbortTooManyRequests(c, retryAfter, "Too many login attempts. Please try again later.")
	}
}

// AbortTooManyRequests writes the 429 body shared by every limiter consumer.
func AbortTooManyRequests(c *gin.Context, retryAfterSeconds int64, message string) {
	c.Header("Retry-After", strconv.FormatInt(retryAfterSeconds, 10))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":               "Too Many Requests",
		"message":             message,
		"retry_after_seconds": retryAfterSeconds,
	})
}

// RetryAfterSeconds rounds up and never returns less than one second.
func RetryAfterSeconds(secs float64) int64 {
	n := int64(secs)
	if float64(n) < secs {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ClientIP resolves the caller address: the first X-Forwarded-For entry, then
// X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
