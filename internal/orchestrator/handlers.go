package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/tableflow/internal/mq"
)

// handleRunSubmit обрабатывает запрос на запуск графа из runs.submit.
//
// Невалидный payload или граф уходит в DLQ. Если оркестратор
// останавливается, сообщение возвращается в очередь.
func (o *Orchestrator) handleRunSubmit(ctx context.Context, msg *mq.Message) error {
	// 1. Парсим payload
	payload, err := mq.DecodePayload[mq.RunSubmitPayload](msg)
	if err != nil {
		o.logger.Error("failed to parse run.submit payload", "error", err)
		return fmt.Errorf("%w: %v", mq.ErrReject, err)
	}

	o.logger.Debug("received run.submit", "message_id", msg.ID)

	// 2. Запускаем run
	state, err := o.Submit(ctx, payload.Graph(), payload.Order)
	if err != nil {
		if errors.Is(err, ErrInvalidGraph) || errors.Is(err, ErrInvalidConfig) {
			o.logger.Warn("run.submit rejected", "message_id", msg.ID, "error", err)
			return fmt.Errorf("%w: %v", mq.ErrReject, err)
		}
		return err
	}

	o.logger.Info("run submitted from queue",
		"run_id", state.ID,
		"message_id", msg.ID,
	)
	return nil
}
