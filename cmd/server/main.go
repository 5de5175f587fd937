package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/housevault/internal/config"
	"github.com/GoPolymarket/housevault/internal/handler"
	"github.com/GoPolymarket/housevault/internal/middleware"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/GoPolymarket/housevault/internal/repository"
	"github.com/GoPolymarket/housevault/internal/service"
	"github.com/GoPolymarket/housevault/internal/signer"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if !common.IsHexAddress(cfg.Auth.AdminAddress) {
		log.Fatalf("auth.admin_address must be set to the treasury admin address")
	}
	admin := common.HexToAddress(cfg.Auth.AdminAddress)

	// 2. Initialize Persistence
	// Journal and audit (Postgres > file only), mirror and sessions (Redis > none)
	var (
		treasuryStore service.TreasuryStore
		history       service.BetHistory
		auditRepo     service.AuditRepo
		idemStore     middleware.IdempotencyStore
		pgAudit       *repository.PostgresAuditRepo
		pgIdem        *repository.PostgresIdempotencyStore
	)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		repo, err := repository.NewPostgresTreasuryRepo(db)
		if err != nil {
			log.Fatalf("Failed to migrate treasury tables: %v", err)
		}
		treasuryStore, history = repo, repo

		if pgAudit, err = repository.NewPostgresAuditRepo(db); err != nil {
			log.Fatalf("Failed to migrate audit table: %v", err)
		}
		auditRepo = pgAudit
		if pgIdem, err = repository.NewPostgresIdempotencyStore(db); err != nil {
			log.Fatalf("Failed to migrate idempotency table: %v", err)
		}
		idemStore = pgIdem
		logger.Info("connected to PostgreSQL")
	}

	var (
		mirror   service.TreasuryMirror
		readback service.MirrorReconciler
		sessions service.SessionStore
		stats    service.StatsReader
		redisCli *repository.RedisClient
	)
	if cfg.Redis.Addr != "" {
		redisCli, err = repository.NewRedisClient(cfg)
		if err != nil {
			logger.Error("failed to connect to Redis, continuing without it", "error", err)
		} else {
			cache := repository.NewRedisTreasuryCache(redisCli)
			mirror, readback, sessions, stats = cache, cache, cache, cache
			idemStore = repository.NewRedisIdempotencyStore(redisCli, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
			if auditRepo == nil {
				auditRepo = repository.NewRedisAuditRepo(redisCli, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
			}
			logger.Info("connected to Redis", "addr", cfg.Redis.Addr)
		}
	}

	// 3. Initialize the treasury core
	journal := service.NewJournal(treasuryStore, mirror, cfg.Treasury.JournalBuffer)
	payouts := service.NewPayoutLedger()
	sinks := treasury.MultiSink{journal}
	if stats == nil {
		memStats := service.NewGameStatsStore()
		sinks = append(sinks, memStats)
		stats = memStats
	}

	vault, err := treasury.New(admin, treasury.ConfigFrom(cfg.Treasury),
		treasury.WithEventSink(sinks),
		treasury.WithPayoutSink(payouts),
	)
	if err != nil {
		log.Fatalf("Failed to initialize treasury: %v", err)
	}

	manager := service.NewGameManager(sessions)
	games := service.NewGameService(vault, manager, cfg.Auth.ChainID)
	if cfg.Chain.RPCURL != "" {
		wallets, err := signer.NewContractVerifier(cfg.Chain.RPCURL,
			time.Duration(cfg.Chain.EIP1271CacheSeconds)*time.Second,
			time.Duration(cfg.Chain.EIP1271TimeoutMs)*time.Millisecond,
			cfg.Chain.EIP1271Retries,
		)
		if err != nil {
			log.Fatalf("Failed to initialize EIP-1271 verifier: %v", err)
		}
		games.UseContractVerifier(wallets)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	state, err := journal.Load(bootCtx)
	if err != nil {
		log.Fatalf("Failed to load treasury state: %v", err)
	}
	if len(state.Games) > 0 || len(state.Partitions) > 0 {
		caps, err := vault.Restore(state)
		if err != nil {
			log.Fatalf("Failed to restore treasury: %v", err)
		}
		bound, err := manager.Rebind(bootCtx, caps)
		if err != nil {
			log.Fatalf("Failed to rebind game sessions: %v", err)
		}
		logger.Info("game sessions rebound", "sessions", bound)
	}
	if readback != nil {
		if _, err := service.ReconcileMirror(bootCtx, readback, vault.State()); err != nil {
			logger.Error("failed to reconcile Redis mirror", "error", err)
		}
	}
	if err := games.Bootstrap(bootCtx, cfg.Games); err != nil {
		log.Fatalf("Failed to register configured games: %v", err)
	}
	bootCancel()

	auditSvc, err := service.NewAuditService(cfg.Server.AuditDir, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// 4. Setup Router
	gin.SetMode(gin.ReleaseMode)
	r := handler.NewRouter(cfg, handler.Deps{
		Treasury:    vault,
		Manager:     manager,
		Games:       games,
		Bets:        service.NewBetService(vault, history, stats),
		Payouts:     payouts,
		Audit:       auditSvc,
		Idempotency: idemStore,
	})

	// 5. Background cleanup of audit and idempotency tables
	var targets []cleanupTarget
	if pgAudit != nil {
		targets = append(targets, cleanupTarget{"audit", pgAudit, time.Duration(cfg.Database.AuditRetentionDays) * 24 * time.Hour})
	}
	if pgIdem != nil {
		targets = append(targets, cleanupTarget{"idempotency", pgIdem, time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second})
	}
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	if len(targets) > 0 {
		go runCleanup(cleanupCtx, time.Duration(cfg.Database.CleanupIntervalMinutes)*time.Minute, targets)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("housevault started", "port", cfg.Server.Port, "admin", admin.Hex(), "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stopCleanup()
	if err := journal.Close(ctx); err != nil {
		logger.Error("journal did not drain", "error", err)
	}
	auditSvc.Close()
	if redisCli != nil {
		_ = redisCli.Close()
	}

	logger.Info("server exiting")
}

type cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

type cleanupTarget struct {
	name      string
	table     cleaner
	retention time.Duration
}

func runCleanup(ctx context.Context, interval time.Duration, targets []cleanupTarget) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, t := range targets {
				if err := t.table.Cleanup(ctx, t.retention); err != nil {
					logger.Warn("cleanup failed", "table", t.name, "error", err)
				}
			}
		}
	}
}
