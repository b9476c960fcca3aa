package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/homescope/reports-back/internal/config"
	"github.com/homescope/reports-back/internal/queue"
	"github.com/homescope/reports-back/internal/repository"
	"github.com/homescope/reports-back/internal/ticker"
)

func main() {
	logger := log.New(os.Stdout, "[hs-ticker] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()
	if err := cfg.ValidateTicker(); err != nil {
		logger.Printf("ERROR: invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("ERROR: connecting to postgres: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	schedules := repository.NewPostgresSchedulesRepository(pool)
	reports := repository.NewPostgresReportsRepository(pool)

	producer, queueCloser := setupProducer(ctx, cfg, logger)
	defer queueCloser()

	scheduleTicker := ticker.New(
		schedules,
		reports,
		producer,
		time.Duration(cfg.TickIntervalSeconds)*time.Second,
		cfg.TickClaimLimit,
		logger,
	)

	logger.Printf("ticker starting interval=%ds claim_limit=%d", cfg.TickIntervalSeconds, cfg.TickClaimLimit)
	scheduleTicker.Run(ctx)
	logger.Printf("ticker stopped")
}

func setupProducer(ctx context.Context, cfg config.Config, logger *log.Logger) (queue.Producer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		return queue.NewLocalQueue(512, cfg.QueueMaxAttempts, logger), func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: cfg.QueueMaxAttempts,
	})
	if err != nil {
		logger.Printf("ERROR: initializing redis streams queue, fallback to local: %v", err)
		return queue.NewLocalQueue(512, cfg.QueueMaxAttempts, logger), func() {}
	}
	logger.Printf("redis streams queue initialized stream=%s", cfg.RedisStream)
	return streams, func() {
		_ = streams.Close()
	}
}
