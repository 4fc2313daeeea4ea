package pubsub

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

type Publisher interface {
	Publish(ctx context.Context, ev session.Event) error
	Close() error
}

type rmqPublisher struct {
	conn  *amqp091.Connection
	queue string
	log   *slog.Logger
}

// NewPublisher declares the session queue and returns a publisher
// writing to it through the default exchange.
func NewPublisher(conn *amqp091.Connection, queue string, logger *slog.Logger) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return nil, err
	}

	return &rmqPublisher{
		conn:  conn,
		queue: queue,
		log:   logger,
	}, nil
}

func (r *rmqPublisher) Publish(ctx context.Context, ev session.Event) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := session.Encode(ev)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, "", r.queue, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     uuid.NewString(),
			CorrelationId: ev.Common().ThreadID,
			Type:          string(ev.Kind()),
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err == nil {
		r.log.Info("published",
			slog.String("type", string(ev.Kind())),
			slog.String("queue", r.queue),
		)
	}
	return err
}

func (r *rmqPublisher) Close() error {
	return nil
}
