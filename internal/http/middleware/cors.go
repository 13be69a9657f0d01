package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS reflects allowedOrigin, or any origin when it is empty (the Mini App host varies in dev)
func CORS(allowedOrigin string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", AdminPasscodeHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if allowedOrigin == "" {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = []string{allowedOrigin}
	}
	return cors.New(cfg)
}
