package middleware

import (
	"net/http"
	"strings"

	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderCapabilityToken = "X-Capability-Token"
	ContextSessionKey     = "game_session"
	ContextGameKey        = "game_key"
)

// CapabilityAuth resolves the caller's token to the game session holding its
// capability.
func CapabilityAuth(gm *service.GameManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderCapabilityToken)
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing capability token"})
			c.Abort()
			return
		}

		session, ok := gm.Resolve(token)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid capability token"})
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, session)
		c.Set(ContextGameKey, session.GameKey)
		c.Set(ContextActorKey, ActorGame)
		c.Next()
	}
}

// SessionFrom returns the session set by CapabilityAuth.
func SessionFrom(c *gin.Context) (*service.GameSession, bool) {
	val, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	session, ok := val.(*service.GameSession)
	return session, ok
}
