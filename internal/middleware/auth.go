package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jutjubic/internal/domain"
	"jutjubic/internal/service"
	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		user, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := apperrors.HTTPStatusFromError(err)
			if status >= http.StatusInternalServerError {
				m.log.Error("Token validation failed", "error", err)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter that browsers must use for websocket upgrades.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}
