package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/GoPolymarket/housevault/internal/config"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAdminKey    = "X-Admin-Key"
	HeaderInvestorKey = "X-Investor-Key"
	ContextActorKey   = "actor"
)

const (
	ActorAdmin    = "admin"
	ActorInvestor = "investor"
	ActorGame     = "game"
)

func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin key not configured"})
			c.Abort()
			return
		}
		if !keyMatches(c.GetHeader(HeaderAdminKey), cfg.Auth.AdminKey) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			c.Abort()
			return
		}
		c.Set(ContextActorKey, ActorAdmin)
		c.Next()
	}
}

// InvestorMiddleware gates deposits and redemptions. The admin key is
// accepted as well.
func InvestorMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || (cfg.Auth.InvestorKey == "" && cfg.Auth.AdminKey == "") {
			c.JSON(http.StatusForbidden, gin.H{"error": "investor key not configured"})
			c.Abort()
			return
		}
		switch {
		case cfg.Auth.InvestorKey != "" && keyMatches(c.GetHeader(HeaderInvestorKey), cfg.Auth.InvestorKey):
			c.Set(ContextActorKey, ActorInvestor)
		case cfg.Auth.AdminKey != "" && keyMatches(c.GetHeader(HeaderAdminKey), cfg.Auth.AdminKey):
			c.Set(ContextActorKey, ActorAdmin)
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid investor key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func keyMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
