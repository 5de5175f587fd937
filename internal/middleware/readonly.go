package middleware

import (
	"net/http"

	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ReadOnlyMiddleware freezes the treasury for maintenance. Only safe methods
// pass, so NAV, balances, stats and the NAV stream stay readable while every
// mutation is refused with 503: bets and settlements, investor deposits and
// redemptions, admin changes and capability claims alike. A game that has
// not claimed yet has to wait until read-only mode is lifted.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || safeMethod(c.Request.Method) {
			c.Next()
			return
		}
		_ = c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
		c.Abort()
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
