package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"teamchat-service/internal/middleware"
	"teamchat-service/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := middleware.RequestIDFromContext(c); id != "" {
		return id
	}

	requestID := c.GetHeader(observability.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if p := middleware.PrincipalFromContext(c); !p.IsAnonymous() {
		id := strconv.Itoa(p.UserID)
		return &id
	}
	return nil
}
