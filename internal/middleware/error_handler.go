package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "jutjubic/pkg/errors"
	"jutjubic/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var rlErr *apperrors.RateLimitError
		if errors.As(err, &rlErr) {
			AbortTooManyRequests(c, RetryAfterSeconds(rlErr.RetryAfter.Seconds()), rlErr.Error())
			return
		}

		statusCode := apperrors.HTTPStatusFromError(err)
		message := err.Error()
		if statusCode >= http.StatusInternalServerError {
			log.Error("Request failed", "path", c.FullPath(), "error", err)
			message = http.StatusText(statusCode)
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}
