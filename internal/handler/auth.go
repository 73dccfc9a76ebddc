package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jutjubic/internal/domain"
	"jutjubic/internal/middleware"
	"jutjubic/internal/service"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

type AuthHandler struct {
	authService    service.AuthService
	limiter        service.RateLimiter
	audit          service.AuditService
	resetOnSuccess bool
	log            logger.Logger
}

func NewAuthHandler(authService service.AuthService, limiter service.RateLimiter, audit service.AuditService, resetOnSuccess bool, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		limiter:        limiter,
		audit:          audit,
		resetOnSuccess: resetOnSuccess,
		log:            log,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required,max=50"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid registration request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.log.Warn("Registration failed", "error", err, "email", req.Email)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.GetString(middleware.ContextClientIP)
	if ip == "" {
		ip = middleware.ClientIP(c.Request)
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	res, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			h.log.Warn("Login failed", "error", err, "email", req.Email, "ip", ip)
			_ = c.Error(err)
			return
		}

		// IncrementAttempt logs its own store failures.
		_, _ = h.limiter.IncrementAttempt(ctx, ip)
		remaining := h.limiter.RemainingAttempts(ctx, ip)
		h.log.Warn("Invalid credentials", "email", req.Email, "ip", ip, "attempts_remaining", remaining)
		h.audit.LogEvent(ctx, service.AuditEvent{
			Type:    domain.EventTypeLoginFailed,
			ActorIP: ip,
			Payload: map[string]interface{}{"email": req.Email, "attempts_remaining": remaining},
		})

		if remaining == 0 {
			retryAfter := middleware.RetryAfterSeconds(h.limiter.TimeUntilReset(ctx, ip).Seconds())
			middleware.AbortTooManyRequests(c, retryAfter, "Too many failed login attempts. Please try again later.")
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              "Invalid credentials",
			"message":            "Invalid email or password",
			"attempts_remaining": remaining,
		})
		return
	}

	if h.resetOnSuccess {
		if err := h.limiter.Reset(ctx, ip); err != nil {
			h.log.Warn("Failed to reset login rate limit", "ip", ip, "error", err)
		}
	}

	h.log.Info("User logged in", "user_id", res.User.ID, "ip", ip)
	c.JSON(http.StatusOK, gin.H{
		"token":   res.Token,
		"message": "Login successful",
		"user":    res.User,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Logout is a no-op for stateless tokens; clients drop the token.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
