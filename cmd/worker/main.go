package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"foliogen/internal/ai"
	"foliogen/internal/config"
	"foliogen/internal/database"
	"foliogen/internal/ingest"
	"foliogen/internal/metrics"
	"foliogen/internal/portfolio"
	"foliogen/internal/ratelimit"
	"foliogen/internal/tasks"
	"foliogen/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	limiter := ratelimit.NewRedisLimiter(redisClient, "rate")
	portfolios := portfolio.NewService(db, logger)
	extractor := ai.NewClient(ai.NewCompleter(cfg.AI, logger), logger)
	orchestrator := ingest.NewOrchestrator(
		db, extractor, portfolios, limiter,
		cfg.Limits.ParseRateLimit, cfg.Limits.ParseRateWindow, logger,
	)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency: 10,
	})

	parseHandler := worker.NewParseTaskHandler(orchestrator, redisClient, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeResumeParse, parseHandler)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
