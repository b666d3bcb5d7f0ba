package middleware

import (
	"github.com/gin-gonic/gin"

	"teamchat-service/internal/auth"
)

const principalKey = "principal"

// Principal resolves the handshake token into a principal and stores it in the
// gin context. Failed authentication yields an anonymous principal; the
// request is never aborted here so the websocket handler can close with a
// proper close frame.
func Principal(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := authenticator.Authenticate(c.Request.Context(), c.GetHeader("Authorization"), c.Query("token"))
		c.Set(principalKey, principal)
		if !principal.IsAnonymous() {
			c.Set("userID", principal.UserID)
		}
		c.Next()
	}
}

// PrincipalFromContext returns the principal stored by Principal, or anonymous.
func PrincipalFromContext(c *gin.Context) auth.Principal {
	if val, ok := c.Get(principalKey); ok {
		if p, ok := val.(auth.Principal); ok {
			return p
		}
	}
	return auth.Anonymous()
}
