package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeRuns Exchange = "tableflow.runs"
	ExchangeDLQ  Exchange = "tableflow.dlq"
)

const (
	QueueRunsSubmit Queue = "runs.submit"
	QueueRunsEvents Queue = "runs.events"
	QueueDLQRuns    Queue = "dlq.runs"
)

const (
	RoutingKeySubmit  RoutingKey = "submit"
	RoutingKeyEvents  RoutingKey = "events"
	RoutingKeyDLQRuns RoutingKey = "runs"
)

// EventsTTL — сколько событие run живёт в runs.events без читателя.
const EventsTTL = 24 * time.Hour

// QueueSpec — очередь и её привязка к обменнику.
type QueueSpec struct {
	Name       Queue
	Exchange   Exchange
	RoutingKey RoutingKey
	Args       amqp.Table
}

// Topology — обменники и очереди tableflow.
type Topology struct {
	Exchanges []Exchange
	Queues    []QueueSpec
}

// DefaultTopology возвращает топологию tableflow.
//
// runs.submit отправляет отклонённые сообщения в dlq.runs,
// runs.events хранит события не дольше EventsTTL.
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []Exchange{ExchangeRuns, ExchangeDLQ},
		Queues: []QueueSpec{
			{
				Name:       QueueRunsSubmit,
				Exchange:   ExchangeRuns,
				RoutingKey: RoutingKeySubmit,
				Args: amqp.Table{
					"x-dead-letter-exchange":    string(ExchangeDLQ),
					"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
				},
			},
			{
				Name:       QueueRunsEvents,
				Exchange:   ExchangeRuns,
				RoutingKey: RoutingKeyEvents,
				Args:       amqp.Table{"x-message-ttl": EventsTTL.Milliseconds()},
			},
			{
				Name:       QueueDLQRuns,
				Exchange:   ExchangeDLQ,
				RoutingKey: RoutingKeyDLQRuns,
			},
		},
	}
}

// Validate проверяет, что каждая очередь привязана к объявленному обменнику.
func (t Topology) Validate() error {
	declared := make(map[Exchange]bool, len(t.Exchanges))
	for _, ex := range t.Exchanges {
		declared[ex] = true
	}

	seen := make(map[Queue]bool, len(t.Queues))
	for _, q := range t.Queues {
		if seen[q.Name] {
			return fmt.Errorf("queue %s declared twice", q.Name)
		}
		seen[q.Name] = true

		if !declared[q.Exchange] {
			return fmt.Errorf("queue %s bound to undeclared exchange %s", q.Name, q.Exchange)
		}
	}
	return nil
}

// Declare объявляет обменники, очереди и привязки. Идемпотентна.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := t.Validate(); err != nil {
		return err
	}

	// 1. Обменники
	for _, ex := range t.Exchanges {
		// durable, без auto-delete, не internal
		if err := ch.ExchangeDeclare(string(ex), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	// 2. Очереди и привязки
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(string(q.Name), true, false, false, false, q.Args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}
		if err := ch.QueueBind(string(q.Name), string(q.RoutingKey), string(q.Exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q.Name, q.Exchange, err)
		}
	}
	return nil
}

// SetupTopology объявляет DefaultTopology через соединение.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, DefaultTopology().Declare)
}
