package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tableflow/internal/blocks"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/mq"
	"github.com/shaiso/tableflow/internal/telemetry"
)

// eventTimeout — сколько ждём публикации одного события.
const eventTimeout = 5 * time.Second

// EventPublisher — получатель событий жизненного цикла run.
// *mq.Publisher реализует этот интерфейс.
type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event mq.RunEvent) error
}

// Controller владеет одним run.
//
// Выполняет блоки строго по порядку, передавая таблицу от блока к блоку,
// ведёт RunState и обрабатывает pause/resume. RunState меняется только
// здесь, под mu; наружу отдаются копии (Snapshot).
//
// В каждый момент работает не более одного цикла выполнения (loop).
type Controller struct {
	ctx    context.Context
	order  []domain.BlockSpec
	blocks *blocks.Registry
	events EventPublisher
	logger *slog.Logger

	mu             sync.RWMutex
	state          domain.RunState
	table          *domain.Table // выход последнего завершённого блока
	pauseRequested bool

	wg sync.WaitGroup
}

// step — блок, который цикл выполняет следующим.
type step struct {
	index int
	spec  domain.BlockSpec
	input *domain.Table
}

// newController создаёт Controller в статусе pending.
// ctx ограничивает время жизни всех циклов выполнения run.
func newController(ctx context.Context, order []domain.BlockSpec, registry *blocks.Registry, events EventPublisher, logger *slog.Logger) *Controller {
	now := time.Now()
	id := uuid.New()

	states := make([]domain.BlockRunState, len(order))
	for i, spec := range order {
		states[i] = domain.BlockRunState{
			BlockID:   spec.ID,
			BlockType: spec.Type,
			Status:    domain.BlockStatusPending,
		}
	}

	return &Controller{
		ctx:    ctx,
		order:  order,
		blocks: registry,
		events: events,
		logger: telemetry.WithRunID(logger, id.String()),
		state: domain.RunState{
			ID:        id,
			Status:    domain.RunStatusPending,
			Blocks:    states,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// ID возвращает идентификатор run.
func (c *Controller) ID() uuid.UUID {
	return c.state.ID
}

// start переводит run из pending в running и запускает цикл выполнения.
func (c *Controller) start() {
	c.mu.Lock()
	if c.state.Status != domain.RunStatusPending {
		c.mu.Unlock()
		return
	}
	now := time.Now()
	c.state.Status = domain.RunStatusRunning
	c.state.StartedAt = &now
	c.state.UpdatedAt = now
	c.mu.Unlock()

	c.logger.Info("run started", "blocks", len(c.order))
	c.emit(mq.MessageTypeRunSubmitted)

	c.mu.Lock()
	c.launchLocked()
	c.mu.Unlock()
}

// launchLocked запускает цикл выполнения. Вызывается под mu.
func (c *Controller) launchLocked() {
	telemetry.RunsActive.Inc()
	c.wg.Add(1)
	go c.loop()
}

// loop выполняет блоки, пока run не завершится или не встанет на паузу.
func (c *Controller) loop() {
	defer c.wg.Done()

	for {
		next, ok := c.advance()
		if !ok {
			return
		}

		out, err := c.execute(next)

		if !c.finishBlock(next, out, err) {
			return
		}
	}
}

// advance выбирает следующий блок на границе блоков.
//
// Если блоков не осталось, run завершается (completed). Если запрошена
// пауза, run переходит в paused. В обоих случаях ok=false.
func (c *Controller) advance() (step, bool) {
	c.mu.Lock()

	i := c.state.CurrentBlockIndex
	now := time.Now()

	// 1. Все блоки выполнены
	if i >= len(c.order) {
		c.state.Status = domain.RunStatusCompleted
		c.state.IsPartial = false
		c.state.FinishedAt = &now
		c.state.UpdatedAt = now
		c.pauseRequested = false
		c.mu.Unlock()

		telemetry.RunsActive.Dec()
		telemetry.RunsTotal.WithLabelValues(string(domain.RunStatusCompleted)).Inc()
		c.logger.Info("run completed", "rows", c.resultRows())
		c.emit(mq.MessageTypeRunCompleted)
		return step{}, false
	}

	// 2. Оркестратор остановлен
	if c.ctx.Err() != nil {
		reason := "interrupted: " + ErrOrchestratorStopped.Error()
		c.failLocked(i, reason, fmt.Sprintf("block %s: %s", c.order[i].ID, reason), now)
		c.mu.Unlock()

		c.logger.Warn("run interrupted", "block_index", i)
		c.emit(mq.MessageTypeRunFailed)
		return step{}, false
	}

	// 3. Пауза на границе блока
	if c.pauseRequested {
		c.pauseLocked(now)
		c.mu.Unlock()

		c.logger.Info("run paused", "block_index", i)
		c.emit(mq.MessageTypeRunPaused)
		return step{}, false
	}

	// 4. Следующий блок
	b := &c.state.Blocks[i]
	b.Status = domain.BlockStatusRunning
	b.Progress = 0
	b.Error = ""
	b.StartedAt = &now
	b.CompletedAt = nil
	c.state.UpdatedAt = now

	next := step{index: i, spec: c.order[i], input: c.table}
	c.mu.Unlock()

	return next, true
}

// execute применяет блок к входной таблице.
func (c *Controller) execute(next step) (*domain.Table, error) {
	logger := telemetry.WithBlock(c.logger, next.spec.ID, string(next.spec.Type))

	block, err := c.blocks.Get(next.spec.Type)
	if err != nil {
		return nil, err
	}

	logger.Info("block started", "index", next.index, "input_rows", next.input.Len())
	start := time.Now()

	out, err := block.Apply(c.ctx, &blocks.Request{
		BlockID:        next.spec.ID,
		Config:         next.spec.Config,
		Input:          next.input,
		OnProgress:     func(percent int) { c.setProgress(next.index, percent) },
		PauseRequested: c.isPauseRequested,
	})

	status := domain.BlockStatusCompleted
	switch {
	case errors.Is(err, blocks.ErrPaused):
		status = domain.BlockStatusPending
	case err != nil:
		status = domain.BlockStatusFailed
	}
	elapsed := time.Since(start)
	telemetry.BlockDuration.WithLabelValues(string(next.spec.Type), string(status)).Observe(elapsed.Seconds())

	if err != nil {
		logger.Debug("block stopped", "status", status, "duration", elapsed, "error", err)
	} else {
		logger.Info("block completed", "duration", elapsed, "output_rows", out.Len())
	}

	return out, err
}

// finishBlock записывает итог блока. Возвращает true, если цикл продолжается.
func (c *Controller) finishBlock(next step, out *domain.Table, err error) bool {
	c.mu.Lock()

	now := time.Now()
	b := &c.state.Blocks[next.index]
	c.state.UpdatedAt = now

	switch {
	case err == nil:
		if out == nil {
			out = domain.EmptyTable()
		}
		b.Status = domain.BlockStatusCompleted
		b.Progress = 100
		b.CompletedAt = &now

		c.table = out
		c.state.CurrentBlockIndex = next.index + 1
		c.state.HasResult = true
		c.state.IsPartial = c.state.CurrentBlockIndex < len(c.order)
		c.state.ResultColumns = slices.Clone(out.Columns)
		c.state.ResultRowCount = out.Len()
		c.state.ResultPreview = out.Preview(domain.PreviewRows)
		c.mu.Unlock()
		return true

	case errors.Is(err, blocks.ErrPaused) && c.ctx.Err() == nil:
		// Блок прерван посередине: перезапустится с первой строки
		b.Status = domain.BlockStatusPending
		b.Progress = 0
		b.StartedAt = nil

		// Resume снял запрос, пока блок останавливался: цикл продолжается
		if !c.pauseRequested {
			c.mu.Unlock()
			c.logger.Info("pause withdrawn, restarting block", "block_index", next.index)
			return true
		}

		c.pauseLocked(now)
		c.mu.Unlock()

		c.logger.Info("run paused inside block", "block_index", next.index)
		c.emit(mq.MessageTypeRunPaused)
		return false

	default:
		reason := err.Error()
		runErr := reason
		var blockErr *blocks.BlockError
		if c.ctx.Err() != nil {
			reason = "interrupted: " + ErrOrchestratorStopped.Error()
			runErr = fmt.Sprintf("block %s: %s", next.spec.ID, reason)
		} else if !errors.As(err, &blockErr) {
			runErr = fmt.Sprintf("block %s: %s", next.spec.ID, reason)
		}

		c.failLocked(next.index, reason, runErr, now)
		c.mu.Unlock()

		c.logger.Warn("run failed", "block_id", next.spec.ID, "block_index", next.index, "error", err)
		c.emit(mq.MessageTypeRunFailed)
		return false
	}
}

// failLocked переводит run в failed на блоке index. Вызывается под mu.
// Следующие блоки остаются pending, результат предыдущего блока сохраняется.
func (c *Controller) failLocked(index int, blockErr, runErr string, now time.Time) {
	b := &c.state.Blocks[index]
	b.Status = domain.BlockStatusFailed
	b.Error = blockErr
	b.CompletedAt = &now

	c.state.Status = domain.RunStatusFailed
	c.state.Error = runErr
	c.state.IsPartial = c.state.HasResult
	c.state.FinishedAt = &now
	c.state.UpdatedAt = now
	c.pauseRequested = false

	telemetry.RunsActive.Dec()
	telemetry.RunsTotal.WithLabelValues(string(domain.RunStatusFailed)).Inc()
}

// pauseLocked переводит run в paused. Вызывается под mu.
func (c *Controller) pauseLocked(now time.Time) {
	c.state.Status = domain.RunStatusPaused
	c.state.IsPartial = true
	c.state.UpdatedAt = now
	c.pauseRequested = false

	telemetry.RunsActive.Dec()
	telemetry.RunsTotal.WithLabelValues(string(domain.RunStatusPaused)).Inc()
}

// Pause запрашивает паузу.
//
// running, pending — запрос записывается и выполняется на ближайшей границе
// блока (или внутри блока на Dispatcher). paused — no-op.
// Завершённый run — ErrInvalidTransition.
func (c *Controller) Pause() (domain.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Status {
	case domain.RunStatusPending, domain.RunStatusRunning:
		if !c.pauseRequested {
			c.logger.Info("pause requested", "block_index", c.state.CurrentBlockIndex)
		}
		c.pauseRequested = true
	case domain.RunStatusPaused:
	default:
		return c.snapshotLocked(), fmt.Errorf("%w: cannot pause %s run", ErrInvalidTransition, c.state.Status)
	}

	return c.snapshotLocked(), nil
}

// Resume продолжает run с блока CurrentBlockIndex.
//
// paused — запускается новый цикл выполнения. running, pending — no-op,
// ещё не выполненный запрос паузы снимается. Завершённый run — ErrInvalidTransition.
func (c *Controller) Resume() (domain.RunState, error) {
	c.mu.Lock()

	switch c.state.Status {
	case domain.RunStatusPaused:
		c.state.Status = domain.RunStatusRunning
		c.state.UpdatedAt = time.Now()
		c.launchLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Info("run resumed", "block_index", snap.CurrentBlockIndex)
		c.emit(mq.MessageTypeRunResumed)
		return snap, nil

	case domain.RunStatusPending, domain.RunStatusRunning:
		c.pauseRequested = false
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil

	default:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("%w: cannot resume %s run", ErrInvalidTransition, snap.Status)
	}
}

// Snapshot возвращает согласованную копию RunState.
func (c *Controller) Snapshot() domain.RunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.RunState {
	s := c.state
	s.Blocks = slices.Clone(c.state.Blocks)
	s.ResultColumns = slices.Clone(c.state.ResultColumns)
	if c.state.ResultPreview != nil {
		s.ResultPreview = make([]domain.Row, len(c.state.ResultPreview))
		for i, r := range c.state.ResultPreview {
			s.ResultPreview[i] = maps.Clone(r)
		}
	}
	return s
}

// Result возвращает доступный результат.
//
// completed — выход последнего блока. Иначе — выход последнего
// завершённого блока с IsPartial=true. ErrResultNotReady, если ни один
// блок ещё не завершился.
func (c *Controller) Result() (*domain.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.state.HasResult {
		return nil, ErrResultNotReady
	}
	return domain.ResultFromTable(c.table, c.state.Status != domain.RunStatusCompleted), nil
}

// setProgress обновляет прогресс выполняющегося блока. Прогресс не убывает.
func (c *Controller) setProgress(index, percent int) {
	percent = min(max(percent, 0), 100)

	c.mu.Lock()
	defer c.mu.Unlock()

	b := &c.state.Blocks[index]
	if b.Status == domain.BlockStatusRunning && percent > b.Progress {
		b.Progress = percent
		c.state.UpdatedAt = time.Now()
	}
}

// isPauseRequested сообщает блокам на Dispatcher, что запрошена пауза.
func (c *Controller) isPauseRequested() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pauseRequested
}

// isActive возвращает true, пока run может менять состояние сам.
func (c *Controller) isActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Status == domain.RunStatusPending || c.state.Status == domain.RunStatusRunning
}

// expired проверяет, можно ли вытеснить run из реестра.
//
// Завершённый run вытесняется через ttl после окончания,
// paused — через ttl без изменений.
func (c *Controller) expired(ttl time.Duration, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.state.Status.IsTerminal():
		return c.state.FinishedAt != nil && now.Sub(*c.state.FinishedAt) > ttl
	case c.state.Status == domain.RunStatusPaused:
		return now.Sub(c.state.UpdatedAt) > ttl
	default:
		return false
	}
}

// wait ждёт завершения текущего цикла выполнения.
func (c *Controller) wait() {
	c.wg.Wait()
}

func (c *Controller) resultRows() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Len()
}

// emit публикует событие со снимком run. Ошибка публикации только логируется.
func (c *Controller) emit(msgType mq.MessageType) {
	if c.events == nil {
		return
	}

	snap := c.Snapshot()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), eventTimeout)
	defer cancel()

	if err := c.events.PublishRunEvent(ctx, mq.NewRunEvent(msgType, &snap)); err != nil {
		c.logger.Warn("failed to publish run event", "type", msgType, "error", err)
	}
}
