// Command send-event publishes a start_session_request to the worker
// queue. It exists for manual testing against a local stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/adrijh/echo-lib/internal/config"
	"github.com/adrijh/echo-lib/pkg/pubsub"
	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

func main() {
	roomID := flag.String("room", uuid.NewString(), "room identifier")
	opportunityID := flag.String("opportunity", uuid.NewString(), "opportunity identifier")
	phone := flag.String("phone", "", "customer phone number (required)")
	firstName := flag.String("first-name", "Test", "customer first name")
	lastName := flag.String("last-name", "", "customer last name")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *phone == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*roomID, *opportunityID, *phone, *firstName, *lastName, logger); err != nil {
		logger.Error("send failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(roomID, opportunityID, phone, firstName, lastName string, logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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

	pub, err := pubsub.NewPublisher(conn, cfg.Queue, logger)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	defer pub.Close()

	ev := session.NewStartSessionRequest(roomID, opportunityID, phone, firstName, lastName)
	if err := pub.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	logger.Info("event published",
		slog.String("room_id", roomID),
		slog.String("thread_id", ev.ThreadID),
	)
	return nil
}
