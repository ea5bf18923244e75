package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/service"
)

// SessionMiddleware creates middleware that resolves the session
// cookie and rejects unauthenticated requests
func SessionMiddleware(authService *service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		session, err := authService.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrSessionExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			}
			return
		}

		// Set the wallet address in the context
		c.Set("walletAddress", session.Address)

		c.Next()
	}
}

// OriginCheck creates middleware that refuses mutating cross-origin
// requests. Requests without an Origin header pass through since
// non-browser clients don't send one.
func OriginCheck(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		for _, candidate := range allowed {
			if origin == candidate {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
	}
}
