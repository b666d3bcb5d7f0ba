package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"teamchat-service/internal/observability"
)

const RequestIDKey = "request_id"

// RequestID propagates X-Request-Id or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(observability.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(observability.RequestIDHeader, id)
		}
		c.Set(RequestIDKey, id)
		c.Header(observability.RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
