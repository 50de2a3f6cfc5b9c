package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/tableflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunSubmit    MessageType = "run.submit"
	MessageTypeRunSubmitted MessageType = "run.submitted"
	MessageTypeRunPaused    MessageType = "run.paused"
	MessageTypeRunResumed   MessageType = "run.resumed"
	MessageTypeRunCompleted MessageType = "run.completed"
	MessageTypeRunFailed    MessageType = "run.failed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения в очереди.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage сериализует payload в новое сообщение.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// DecodePayload разбирает payload сообщения в T.
func DecodePayload[T any](msg *Message) (T, error) {
	var out T
	if len(msg.Payload) == 0 {
		return out, fmt.Errorf("message %s: empty payload", msg.ID)
	}
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("message %s: decode %s payload: %w", msg.ID, msg.Type, err)
	}
	return out, nil
}

// RunSubmitPayload — payload запроса на запуск графа.
// Либо Nodes (+Edges), либо Blocks (цепочка).
type RunSubmitPayload struct {
	Nodes  []domain.BlockSpec `json:"nodes,omitempty"`
	Edges  []domain.Edge      `json:"edges,omitempty"`
	Blocks []domain.BlockSpec `json:"blocks,omitempty"`
	Order  []string           `json:"order,omitempty"`
}

// Graph возвращает граф из payload.
func (p RunSubmitPayload) Graph() *domain.Graph {
	if len(p.Nodes) == 0 && len(p.Blocks) > 0 {
		g := domain.ChainGraph(p.Blocks)
		return &g
	}
	return &domain.Graph{Nodes: p.Nodes, Edges: p.Edges}
}

// RunEvent — событие жизненного цикла run.
type RunEvent struct {
	Type              MessageType      `json:"-"`
	RunID             uuid.UUID        `json:"run_id"`
	Status            domain.RunStatus `json:"status"`
	CurrentBlockIndex int              `json:"current_block_index"`
	Error             string           `json:"error,omitempty"`
}

// NewRunEvent собирает событие из снимка run.
func NewRunEvent(msgType MessageType, state *domain.RunState) RunEvent {
	return RunEvent{
		Type:              msgType,
		RunID:             state.ID,
		Status:            state.Status,
		CurrentBlockIndex: state.CurrentBlockIndex,
		Error:             state.Error,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunEvent публикует событие жизненного цикла run в runs.events.
func (p *Publisher) PublishRunEvent(ctx context.Context, event RunEvent) error {
	msg, err := NewMessage(event.Type, event)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRuns, RoutingKeyEvents, msg)
}

// PublishRunSubmit публикует запрос на запуск графа в runs.submit.
func (p *Publisher) PublishRunSubmit(ctx context.Context, payload RunSubmitPayload) error {
	msg, err := NewMessage(MessageTypeRunSubmit, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRuns, RoutingKeySubmit, msg)
}
