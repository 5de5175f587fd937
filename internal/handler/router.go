package handler

import (
	"net/http"
	"time"

	"github.com/GoPolymarket/housevault/internal/config"
	"github.com/GoPolymarket/housevault/internal/middleware"
	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the HTTP API is built on. Audit is optional.
type Deps struct {
	Treasury    *treasury.Treasury
	Manager     *service.GameManager
	Games       *service.GameService
	Bets        *service.BetService
	Payouts     *service.PayoutLedger
	Audit       *service.AuditService
	Idempotency middleware.IdempotencyStore
}

func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "housevault"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	stream := NewStreamHandler(d.Treasury, time.Duration(cfg.Stream.NAVIntervalMs)*time.Millisecond, cfg.Stream.AllowedOrigins)
	r.GET("/v1/stream/nav", stream.NAV)

	games := NewGameHandler(d.Games)
	bets := NewBetHandler(d.Bets)
	vault := NewTreasuryHandler(d.Treasury, d.Payouts)

	idem := d.Idempotency
	if idem == nil {
		idem = middleware.NewInMemIdempotencyStore()
	}

	v1 := r.Group("/v1")
	if d.Audit != nil {
		v1.Use(middleware.AuditMiddleware(d.Audit))
	}
	v1.Use(middleware.ErrorHandler())
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
	{
		v1.GET("/games", games.List)
		v1.GET("/games/:key", games.Status)
		v1.GET("/games/:key/balance", vault.GameBalance)
		v1.GET("/games/:key/stats", bets.Stats)
		v1.POST("/games/:key/claim", games.Claim)
		v1.GET("/treasury/nav", vault.NAV)
		v1.GET("/treasury/balance", vault.Balance)
		v1.GET("/players/:address/payouts", vault.Payouts)
	}

	investor := v1.Group("/treasury")
	investor.Use(middleware.InvestorMiddleware(cfg))
	investor.Use(middleware.IdempotencyMiddleware(idem))
	{
		investor.POST("/deposit", vault.Deposit)
		investor.POST("/redeem", vault.Redeem)
	}

	admin := v1.Group("/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	admin.Use(middleware.IdempotencyMiddleware(idem))
	{
		admin.POST("/games", games.Register)
		admin.DELETE("/games/:key", games.Unregister)
		admin.PUT("/games/:key/limits", games.UpdateLimits)
		admin.POST("/games/:key/sweep", games.Sweep)
	}

	game := v1.Group("")
	game.Use(middleware.CapabilityAuth(d.Manager))
	game.Use(middleware.RateLimitMiddleware(d.Manager))
	game.Use(middleware.IdempotencyMiddleware(idem))
	{
		game.POST("/bets", bets.Place)
		game.GET("/bets", bets.History)
		game.GET("/bets/open", bets.Open)
		game.GET("/bets/:id", bets.Get)
		game.POST("/bets/:id/settle", bets.Settle)
		game.PUT("/game/limits", games.RequestLimits)
	}

	if d.Audit != nil {
		auditHandler := NewAuditHandler(d.Audit)
		admin.GET("/audit", auditHandler.List)
		game.GET("/game/audit", auditHandler.List)
	}

	return r
}
