package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

// Dispatcher routes one decoded event to its registered handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev session.Event) error
}

// Consumer pulls one unacknowledged message at a time (prefetch 1),
// decodes it, dispatches it, and acks. It never processes two messages
// concurrently; long-running work must be detached by the handlers.
type Consumer struct {
	conn       *amqp091.Connection
	ch         *amqp091.Channel
	queue      string
	dispatcher Dispatcher
	dead       DeadLetter
	log        *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewConsumer(
	conn *amqp091.Connection,
	queue string,
	dispatcher Dispatcher,
	dead DeadLetter,
	logger *slog.Logger,
) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if dead == nil {
		dead = NopDeadLetter{}
	}
	return &Consumer{
		conn:       conn,
		ch:         ch,
		queue:      queue,
		dispatcher: dispatcher,
		dead:       dead,
		log:        logger,
		done:       make(chan struct{}),
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	var startErr error
	c.once.Do(func() {
		msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
		if err != nil {
			startErr = err
			return
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-c.done:
					return
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.handleDelivery(ctx, d)
				}
			}
		}()
		c.log.Info("consumer started", slog.String("queue", c.queue))
	})
	return startErr
}

// handleDelivery runs one Fetch→Decode→Dispatch→Ack cycle. A decode
// failure is poison: the payload is copied to the dead-letter queue and
// acked so the broker never redelivers it. A dispatch failure leaves
// the message to the broker's own redelivery.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp091.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in dispatch", slog.Any("panic", r))
			_ = d.Nack(false, true)
		}
	}()

	ev, err := session.Decode(d.Body)
	if err != nil {
		c.log.Warn("poison message dropped", slog.Any("error", err))
		if derr := c.dead.Publish(ctx, d.Body, "decode"); derr != nil {
			c.log.Error("dead-letter publish failed", slog.Any("error", derr))
		}
		_ = d.Ack(false)
		return
	}

	if err := c.dispatcher.Dispatch(ctx, ev); err != nil {
		c.log.Error("dispatch failed",
			slog.String("type", string(ev.Kind())),
			slog.String("thread_id", ev.Common().ThreadID),
			slog.Any("error", err),
		)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	close(c.done)
	c.wg.Wait()
	return c.ch.Close()
}
