package middleware

import (
	"net/http"
	"strings"

	"ton_miner/internal/service"

	"github.com/gin-gonic/gin"
)

const AdminPasscodeHeader = "X-Admin-Passcode"

// JWT authenticates "Authorization: Bearer <token>" and stores user_id in the context
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// AdminPasscode gates admin routes on the configured passcode
func AdminPasscode(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !admin.VerifyPasscode(c.GetHeader(AdminPasscodeHeader)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "wrong passcode"})
			return
		}
		c.Next()
	}
}
