package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"esnafpanel-core/internal/auth"
)

const userIDContextKey = "userID"

func UserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := userID.(string)
	return value, ok && value != ""
}

// RequireAuth admits only requests carrying a valid bearer access token.
// A 401 from here is what triggers the client's refresh protocol.
func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz oturum"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(parts[1], auth.TokenTypeAccess, cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Geçersiz oturum"})
			c.Abort()
			return
		}

		c.Set(userIDContextKey, claims.UserID)
		c.Next()
	}
}
