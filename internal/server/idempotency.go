package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader     = "X-Request-ID"
	contextRequestIDKey = "request_id"
)

func idempotencyKeyFromHeader(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("Idempotency-Key"))
}

// requestID echoes a caller supplied X-Request-ID or assigns a new UUID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(contextRequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestIDFromContext(c *gin.Context) string {
	return c.GetString(contextRequestIDKey)
}
