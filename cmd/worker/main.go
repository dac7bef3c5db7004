package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/app"
	"github.com/linkedreach/backend/internal/config"
	"github.com/linkedreach/backend/internal/db"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/ratelimit"
	"github.com/linkedreach/backend/internal/services"
)

const batchSize = 200

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPoolSize, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	svc := app.NewServices(cfg, pool, rdb, log)

	if err := svc.Billing.Run(ctx, events.NewRedisSubscriber(rdb, log)); err != nil {
		log.Fatal("failed to subscribe to billing events", zap.Error(err))
	}

	health := fiber.New(fiber.Config{DisableStartupMessage: true})
	health.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	go func() {
		if err := health.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("health server stopped", zap.Error(err))
		}
	}()
	defer health.Shutdown()

	log.Info("worker started")

	// Run jobs on tickers
	gcTicker := time.NewTicker(cfg.GCInterval)
	downgradeTicker := time.NewTicker(cfg.DowngradeInterval)
	followUpTicker := time.NewTicker(cfg.FollowUpInterval)
	defer gcTicker.Stop()
	defer downgradeTicker.Stop()
	defer followUpTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-gcTicker.C:
			runRateLimitGC(ctx, svc.Limiter, log)
		case <-downgradeTicker.C:
			runDowngrades(ctx, svc.Users, log)
		case <-followUpTicker.C:
			runFollowUps(ctx, svc.Prospects, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runRateLimitGC(ctx context.Context, limiter *ratelimit.Limiter, log *zap.Logger) {
	n, err := limiter.CollectGarbage(ctx)
	if err != nil {
		log.Error("rate limit gc failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired rate limit windows removed", zap.Int64("count", n))
	}
}

func runDowngrades(ctx context.Context, users *services.UserService, log *zap.Logger) {
	n, err := users.ExpireDowngrades(ctx, batchSize)
	if err != nil {
		log.Error("plan downgrade sweep failed", zap.Int("applied", n), zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("pending downgrades applied", zap.Int("count", n))
	}
}

func runFollowUps(ctx context.Context, prospects *services.ProspectService, log *zap.Logger) {
	n, err := prospects.FollowUps(ctx, batchSize)
	if err != nil {
		log.Error("follow-up sweep failed", zap.Int("notified", n), zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("follow-ups due", zap.Int("count", n))
	}
}
