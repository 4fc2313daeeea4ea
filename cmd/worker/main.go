package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adrijh/echo-lib/internal/config"
	"github.com/adrijh/echo-lib/internal/dialer"
	"github.com/adrijh/echo-lib/internal/gateway"
	"github.com/adrijh/echo-lib/internal/handlers"
	"github.com/adrijh/echo-lib/internal/notify"
	"github.com/adrijh/echo-lib/internal/storage"
	"github.com/adrijh/echo-lib/internal/store"
	"github.com/adrijh/echo-lib/internal/summary"
	"github.com/adrijh/echo-lib/pkg/pubsub"
)

func main() {
	os.Exit(run0())
}

func run0() int {
	// .env is optional; production sets real environment variables.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal error", slog.Any("error", err))
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("worker starting", slog.String("queue", cfg.Queue))

	conn, err := pubsub.DialWithRetry(ctx, pubsub.ConnectionOptions{
		Host:          cfg.RabbitHost,
		Port:          cfg.RabbitPort,
		User:          cfg.RabbitUser,
		Password:      cfg.RabbitPassword,
		RetryAttempts: cfg.RetryAttempts,
		Delay:         cfg.RetryDelay,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer conn.Close()

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()
	if err := db.Setup(ctx); err != nil {
		return fmt.Errorf("store setup: %w", err)
	}

	blobs, err := storage.New(storage.Options{
		Endpoint:  cfg.BlobEndpoint,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Bucket:    cfg.BlobBucket,
		UseSSL:    cfg.BlobUseSSL,
	}, logger)
	if err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}

	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayAPISecret, logger)

	allocator := dialer.NewAllocator(gw, dialer.AllocatorConfig{
		Lines:                cfg.Lines,
		MaxConcurrentPerLine: cfg.MaxPerLine,
		MaxRetries:           cfg.AllocMaxRetries,
		RetryWait:            cfg.AllocRetryWait,
	}, logger)

	calls := dialer.NewCallManager(gw, dialer.CallManagerConfig{
		TrunkID:         cfg.SIPTrunkID,
		RoomIdleTimeout: cfg.RoomIdleTimeout,
	}, logger)

	mailer := notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailTo, logger)
	summaries := summary.New(cfg.OpenAIAPIKey, cfg.SummaryModel, blobs, mailer, logger)

	dead, err := pubsub.SetupDeadLetter(&pubsub.DeadLetterConfig{
		Conn:          conn,
		FinalExchange: cfg.DeadLetterExchange,
		FinalQueue:    cfg.DeadLetterQueue,
	})
	if err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}

	reg := handlers.BuildRegistry(handlers.Deps{
		Store:     db,
		Allocator: allocator,
		Calls:     calls,
		Summaries: summaries,
		Dead:      dead,
		Log:       logger,
	})

	consumer, err := pubsub.NewConsumer(conn, cfg.Queue, reg, dead, logger)
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	logger.Info("worker ready", slog.String("queue", cfg.Queue))

	<-ctx.Done()
	logger.Info("shutting down")

	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close", slog.Any("error", err))
	}

	// Give detached calls a bounded window to finish their rooms.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := calls.Wait(drainCtx); err != nil {
		logger.Warn("calls still in flight at shutdown", slog.Any("error", err))
	}

	return nil
}
