package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/campusperks/backend/config"
	"github.com/campusperks/backend/internal/emaillogs"
	"github.com/campusperks/backend/internal/mailer"
	"github.com/campusperks/backend/internal/worker"
	"github.com/campusperks/backend/pkg/database"
	"github.com/campusperks/backend/pkg/queue"
	"github.com/campusperks/backend/pkg/redis"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	processor := worker.NewEmailProcessor(
		queue.NewQueue(redisClient.Client, logger),
		mailer.New(cfg.Email, logger),
		emaillogs.NewRepository(pool),
		logger,
	)
	if err := processor.Run(ctx); err != nil {
		logger.Fatal("worker error", zap.Error(err))
	}
	logger.Info("worker stopped")
}
