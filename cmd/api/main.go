package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/app"
	"github.com/linkedreach/backend/internal/config"
	"github.com/linkedreach/backend/internal/db"
	"github.com/linkedreach/backend/internal/events"
	apphttp "github.com/linkedreach/backend/internal/http"
	"github.com/linkedreach/backend/internal/http/handlers"
	"github.com/linkedreach/backend/migrations"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	var migrationsFS fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		migrationsFS = os.DirFS(cfg.MigrationsDir)
	}
	if err := db.RunMigrations(ctx, pool, migrationsFS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPoolSize, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	svc := app.NewServices(cfg, pool, rdb, log)
	defer svc.Limiter.Wait()

	subscriber := events.NewRedisSubscriber(rdb, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	wsHub.Start(ctx)

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(fiberApp, cfg, log, rdb, apphttp.Handlers{
		Auth:     handlers.NewAuthHandler(svc.Users, cfg, log),
		User:     handlers.NewUserHandler(svc.Users, log),
		Campaign: handlers.NewCampaignHandler(svc.Campaigns, log),
		Prospect: handlers.NewProspectHandler(svc.Prospects, svc.Users, log),
		Lead:     handlers.NewLeadHandler(svc.Leads, log),
		Meta:     handlers.NewMetaHandler(),
		WSHub:    wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = fiberApp.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := fiberApp.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
