package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/tableflow/internal/telemetry"
)

// ErrReject — обработчик отклоняет сообщение без повтора.
// Такое сообщение уходит в DLQ очереди.
var ErrReject = errors.New("message rejected")

// Handler обрабатывает одно сообщение.
//
// nil — ack; ошибка, обёрнутая в ErrReject, — nack в DLQ;
// любая другая ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Message) error

// Исходы обработки сообщения (label метрики).
const (
	outcomeAck        = "ack"
	outcomeRequeue    = "requeue"
	outcomeDeadLetter = "dead_letter"
)

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue    string
	Handler  Handler
	Prefetch int // default: 1
}

// Consumer читает очередь и передаёт сообщения в Handler.
// После разрыва соединения подписка восстанавливается автоматически.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancel context.CancelFunc
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: max(cfg.Prefetch, 1),
	}
}

// Start блокируется, пока ctx не отменён или не вызван Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		deliveries, err := c.subscribe(ctx)
		if err == nil {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		} else {
			c.logger.Error("failed to subscribe", "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Подписка потеряна, ждём нового соединения
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
			c.logger.Info("reconnected, resubscribing")
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// subscribe выставляет prefetch и открывает поток доставок.
func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		var err error
		deliveries, err = ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})
	return deliveries, err
}

// drain обрабатывает доставки, пока поток не закроется или ctx не отменён.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery stream closed")
				return
			}
			c.settle(raw, c.handle(ctx, raw))
		}
	}
}

// handle разбирает конверт и вызывает обработчик.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) error {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		return fmt.Errorf("%w: malformed envelope: %v", ErrReject, err)
	}

	c.logger.Debug("received message",
		"message_id", msg.ID,
		"type", msg.Type,
		"redelivered", raw.Redelivered,
	)
	return c.handler(ctx, &msg)
}

// settle подтверждает или отклоняет доставку по результату обработки.
func (c *Consumer) settle(raw amqp.Delivery, err error) {
	outcome := outcomeAck
	var ackErr error

	switch {
	case err == nil:
		ackErr = raw.Ack(false)
	case errors.Is(err, ErrReject):
		outcome = outcomeDeadLetter
		c.logger.Warn("message dead-lettered", "message_id", raw.MessageId, "error", err)
		ackErr = raw.Nack(false, false)
	default:
		outcome = outcomeRequeue
		c.logger.Error("handler failed, requeueing", "message_id", raw.MessageId, "error", err)
		ackErr = raw.Nack(false, true)
	}

	if ackErr != nil {
		c.logger.Error("failed to settle delivery", "message_id", raw.MessageId, "error", ackErr)
	}
	telemetry.MQMessagesTotal.WithLabelValues(c.queue, outcome).Inc()
}
