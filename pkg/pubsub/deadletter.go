package pubsub

import (
	"context"
	"errors"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// DeadLetter keeps a copy of payloads the worker will never process:
// poison messages and events whose allocation budget was exhausted.
type DeadLetter interface {
	Publish(ctx context.Context, body []byte, reason string) error
}

type DeadLetterConfig struct {
	Conn *amqp091.Connection

	FinalExchange string
	FinalQueue    string
}

type rmqDeadLetter struct {
	conn     *amqp091.Connection
	exchange string
}

// SetupDeadLetter declares the final exchange/queue pair and returns a
// publisher for it. Messages landing here are terminal.
func SetupDeadLetter(cfg *DeadLetterConfig) (DeadLetter, error) {
	if cfg == nil {
		return nil, errors.New("empty config")
	}
	ch, err := cfg.Conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.FinalExchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, err
	}
	fq, err := ch.QueueDeclare(cfg.FinalQueue, true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(fq.Name, "#", cfg.FinalExchange, false, nil); err != nil {
		return nil, err
	}
	return &rmqDeadLetter{conn: cfg.Conn, exchange: cfg.FinalExchange}, nil
}

func (d *rmqDeadLetter) Publish(ctx context.Context, body []byte, reason string) error {
	ch, err := d.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, d.exchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp091.Table{"x-dead-reason": reason},
		Body:         body,
	})
}

// NopDeadLetter drops dead letters, restoring the silent-discard
// behavior for deployments that do not want the extra queue.
type NopDeadLetter struct{}

func (NopDeadLetter) Publish(context.Context, []byte, string) error { return nil }
