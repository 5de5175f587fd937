package middleware

import (
	"errors"

	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last handler error as an AppError body.
// Consistency failures (double settles, payouts above the reserved amount)
// point at a misbehaving game or a treasury bug, so they are logged at error
// level next to 5xx responses. Caller mistakes stay at warn.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
		}

		category := appErr.Category()
		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"category", category,
			"client_ip", c.ClientIP(),
		}
		if key := c.GetString(ContextGameKey); key != "" {
			logFields = append(logFields, "game", key)
		}

		switch {
		case appErr.HTTPStatus >= 500:
			logger.LogError(c.Request.Context(), appErr, "Internal Server Error", logFields...)
		case category == apperrors.CategoryConsistency:
			logger.LogError(c.Request.Context(), appErr, "treasury consistency violation", logFields...)
		default:
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, appErr)
	}
}
