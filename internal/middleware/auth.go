package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// contextUserIDKey is where the authenticated user id lives in the gin
// context.
const contextUserIDKey = "authUserID"

// GatewayIdentity returns middleware that extracts the caller's identity
// from the header the auth gateway injects. The gateway has already
// verified credentials; an absent header means the request bypassed the
// gateway and is rejected.
func GatewayIdentity(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(header)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id for the request, or "" when the
// identity middleware did not run.
func UserID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
