package middlewares

import (
	"net/http"
	"strings"

	"storefront/config"
	"storefront/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the bearer token and stores the caller's identity
// and role in the request context. Missing or invalid credentials end the
// request with 401.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be a bearer token"})
			return
		}

		claims, err := utils.ParseToken(cfg, tokenString, utils.TokenTypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// Identity returns the authenticated user's id and role from the context.
func Identity(c *gin.Context) (int64, string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return 0, "", false
	}
	role, exists := c.Get("role")
	if !exists {
		return 0, "", false
	}
	return userID.(int64), role.(string), true
}
