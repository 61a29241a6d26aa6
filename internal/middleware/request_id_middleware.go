package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emilythestrangee/threadvote/backend/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's if sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(logger.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
