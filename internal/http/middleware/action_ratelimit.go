package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ActionRateLimit limits mining actions per user (not per IP) using Redis.
// Requires JWT middleware to run before this.
func ActionRateLimit(maxActions int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		userID, ok := c.Get("user_id")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		uid, ok := userID.(int64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
			return
		}

		key := "action_rl:" + strconv.FormatInt(uid, 10) + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		val, err := hit(ctx, key, window)
		if err != nil {
			c.Header("X-ActionRateLimit-Error", "redis-error")
			c.Next()
			return
		}

		c.Header("X-ActionRateLimit-Limit", strconv.Itoa(maxActions))
		c.Header("X-ActionRateLimit-Remaining", strconv.FormatInt(max(0, int64(maxActions)-val), 10))

		if val > int64(maxActions) {
			RLBlocked.WithLabelValues("action:" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many actions",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues("action:" + c.FullPath()).Inc()
		c.Next()
	}
}
