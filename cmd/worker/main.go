package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/homescope/reports-back/internal/brand"
	"github.com/homescope/reports-back/internal/config"
	"github.com/homescope/reports-back/internal/mail"
	"github.com/homescope/reports-back/internal/mls"
	"github.com/homescope/reports-back/internal/pdf"
	"github.com/homescope/reports-back/internal/photo"
	"github.com/homescope/reports-back/internal/pipeline"
	"github.com/homescope/reports-back/internal/plancache"
	"github.com/homescope/reports-back/internal/queue"
	"github.com/homescope/reports-back/internal/recipient"
	"github.com/homescope/reports-back/internal/report"
	"github.com/homescope/reports-back/internal/repository"
	"github.com/homescope/reports-back/internal/storage"
	"github.com/homescope/reports-back/internal/usage"
	"github.com/homescope/reports-back/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[hs-worker] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Printf("ERROR: invalid configuration: %v", err)
		os.Exit(1)
	}
	if !cfg.WorkerEnabled {
		logger.Printf("worker disabled by configuration")
		return
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
	accounts := repository.NewPostgresAccountsRepository(pool)
	contacts := repository.NewPostgresContactsRepository(pool)
	emailLog := repository.NewPostgresEmailLogRepository(pool)

	store, err := storage.NewS3Store(ctx, storage.Config{
		Endpoint:   cfg.StorageEndpoint,
		Region:     cfg.StorageRegion,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		PublicHost: cfg.StoragePublicHost,
	})
	if err != nil {
		logger.Printf("ERROR: initializing object storage: %v", err)
		os.Exit(1)
	}

	mlsClient := mls.NewClient(mls.ClientConfig{
		BaseURL:           cfg.MLSBaseURL,
		Username:          cfg.MLSUsername,
		Password:          cfg.MLSPassword,
		RequestsPerMinute: cfg.MLSRequestsPerMin,
		Burst:             cfg.MLSBurst,
		PageSize:          cfg.MLSPageSize,
		DefaultCap:        cfg.MLSDefaultCap,
		Timeout:           time.Duration(cfg.MLSTimeoutMS) * time.Millisecond,
	})

	var renderer pdf.Renderer
	if cfg.PDFBackend == "local" {
		renderer = pdf.NewLocalRenderer()
	} else {
		renderer = pdf.NewCloudRenderer(cfg.PDFServiceURL, cfg.PDFServiceKey)
	}
	pdfService := pdf.NewService(renderer, store, cfg.PrintBaseURL)

	planCache := plancache.New(accounts, plancache.Config{})
	sender := mail.NewSender(mail.Config{
		APIKey:            cfg.MailAPIKey,
		FromAddress:       cfg.MailFromAddress,
		FromName:          cfg.MailFromName,
		UnsubscribeSecret: cfg.UnsubscribeSecret,
		UnsubscribeBase:   cfg.UnsubscribeBase,
	}, emailLog, logger)

	jobPipeline := pipeline.New(pipeline.Deps{
		Builder:    report.NewBuilder(mlsClient, logger),
		Photos:     photo.NewProxy(store, logger),
		PDF:        pdfService,
		Recipients: recipient.NewResolver(contacts, accounts, logger),
		Mailer:     sender,
		Governor:   usage.NewGovernor(accounts, planCache, reports, logger),
		Brands:     brand.NewComposer(accounts, logger),
		Schedules:  schedules,
		Reports:    reports,
		Accounts:   accounts,
		Logger:     logger,
	})

	consumer, queueCloser := setupConsumer(ctx, cfg, jobPipeline.HandleExhausted, logger)
	defer queueCloser()

	processor := worker.NewProcessor(consumer, jobPipeline, cfg.WorkerCount, logger)
	logger.Printf("worker starting")
	processor.Start(ctx)
	logger.Printf("worker stopped")
}

func setupConsumer(
	ctx context.Context,
	cfg config.Config,
	onExhausted queue.ExhaustedFunc,
	logger *log.Logger,
) (queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, cfg.QueueMaxAttempts, logger)
		local.OnExhausted = onExhausted
		return local, func() {}
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
		local := queue.NewLocalQueue(512, cfg.QueueMaxAttempts, logger)
		local.OnExhausted = onExhausted
		return local, func() {}
	}
	streams.OnExhausted = onExhausted
	logger.Printf("redis streams queue initialized stream=%s group=%s", cfg.RedisStream, cfg.RedisGroup)
	return streams, func() {
		_ = streams.Close()
	}
}
