package middleware

import (
	"strings"

	"elevate_backend/internal/config"
	"elevate_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AttemptAuth validates the session token and pins it to the attempt in
// the path. A token for attempt A can never act on attempt B.
func AttemptAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseAttemptToken(parts[1], cfg.JWT.Secret)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if attemptID := c.Param("id"); attemptID != "" && attemptID != claims.AttemptID {
			util.Forbidden(c)
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// AdminAuth gates operator endpoints behind a pre-shared key, checked
// against the bcrypt hash in config.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if key == "" || cfg.Server.AdminKeyHash == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(cfg.Server.AdminKeyHash), []byte(key)); err != nil {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
