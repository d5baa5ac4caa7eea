package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/cache"
	"github.com/ZanzyTHEbar/contribution-proof/internal/config"
	"github.com/ZanzyTHEbar/contribution-proof/internal/database"
	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/ZanzyTHEbar/contribution-proof/internal/monitoring"
	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
	"github.com/ZanzyTHEbar/contribution-proof/internal/ratelimit"
	"github.com/ZanzyTHEbar/contribution-proof/internal/security"
	"github.com/ZanzyTHEbar/contribution-proof/internal/server"
)

const retentionInterval = 24 * time.Hour

func main() {
	issueFor := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger.Logger)

	if *issueFor != "" {
		token, err := issueToken(cfg, *issueFor, *tokenTTL)
		if err != nil {
			errors.LogError(logger.Logger, errors.ToAppError(err))
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		errors.LogError(logger.Logger, errors.ToAppError(err))
		os.Exit(1)
	}
	logger.SystemLogger("server_stopped", "shutdown complete")
}

func issueToken(cfg *config.Config, subject string, ttl time.Duration) (string, error) {
	auth := security.NewAuthenticator(cfg.Server.JWTSecret)
	if !auth.Enabled() {
		return "", errors.NewConfigurationError("JWT_SECRET must be set to issue tokens", nil)
	}
	return auth.IssueToken(subject, ttl)
}

func serve(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) error {
	db, err := database.NewDB(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer errors.SafeClose(db, "proof history database")

	history := database.NewHistoryService(database.NewRepository(db), logger.Logger)
	go history.RunRetention(ctx, cfg.Storage.RetentionDays, retentionInterval)

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting falls back to in-process limiters", "error", err)
	}
	defer errors.SafeClose(redisClient, "redis client")

	metrics := monitoring.NewMetrics()

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.Server.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limiterConfig, metrics)
	defer limiter.Close()

	results := cache.NewCache(cfg.Server.CacheTTL.Duration)
	if cfg.Server.CacheTTL.Duration > 0 {
		results.StartCleanup(ctx, cfg.Server.CacheTTL.Duration)
	}

	auth := security.NewAuthenticator(cfg.Server.JWTSecret)
	if !auth.Enabled() {
		logger.Warn("JWT_SECRET not set, /v1 endpoints are unauthenticated")
	}

	srv := server.New(server.Dependencies{
		Config:    cfg,
		Generator: proof.NewGenerator(logger.Logger),
		History:   history,
		DB:        db,
		Cache:     results,
		Limiter:   limiter,
		Auth:      auth,
		Metrics:   metrics,
		Logger:    logger,
	})

	return srv.Run(ctx, ":"+cfg.Server.Port)
}
