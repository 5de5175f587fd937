package middleware

import (
	"net/http"

	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles each game separately. It must run after
// CapabilityAuth.
func RateLimitMiddleware(gm *service.GameManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameKey := c.GetString(ContextGameKey)
		if gameKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		limiter := gm.LimiterFor(gameKey)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
