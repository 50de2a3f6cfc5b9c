package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tableflow/internal/blocks"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/engine"
	"github.com/shaiso/tableflow/internal/mq"
)

// Orchestrator — граница движка: submit, статус, результат, pause/resume.
//
// Orchestrator:
//   - Компилирует граф и проверяет конфигурации блоков до запуска
//   - Создаёт Controller на каждый run и хранит его в Registry
//   - Принимает запросы на запуск из очереди runs.submit (если есть MQ)
//   - Вытесняет устаревшие run по TTL
type Orchestrator struct {
	blocks *blocks.Registry
	runs   *Registry
	events EventPublisher

	// MQ
	conn           *mq.Connection
	submitConsumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Blocks — реестр типов блоков (default: blocks.DefaultRegistry без зависимостей).
	Blocks *blocks.Registry

	// Events — получатель событий run. Может быть nil.
	Events EventPublisher

	// Conn — соединение для consumer runs.submit. Может быть nil.
	Conn *mq.Connection

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	registry := cfg.Blocks
	if registry == nil {
		registry = blocks.DefaultRegistry(blocks.Deps{})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		blocks:     registry,
		runs:       NewRegistry(),
		events:     cfg.Events,
		conn:       cfg.Conn,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start запускает consumer очереди runs.submit, если задано соединение.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}
	if o.conn == nil {
		o.logger.Info("orchestrator started without message queue")
		return nil
	}

	o.submitConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueRunsSubmit),
		Handler:  o.handleRunSubmit,
		Prefetch: 10,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.submitConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("submit consumer error", "error", err)
		}
	}()

	o.logger.Info("orchestrator started", "queue", mq.QueueRunsSubmit)
	return nil
}

// Stop останавливает Orchestrator.
//
// Новые submit отклоняются, выполняющиеся run прерываются и завершаются
// со статусом failed. Paused run остаются paused.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	if o.stopped {
		o.stoppedMu.Unlock()
		return
	}
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	o.cancelFunc()
	if o.submitConsumer != nil {
		o.submitConsumer.Stop()
	}
	o.wg.Wait()

	for _, c := range o.runs.List() {
		c.wait()
	}

	o.logger.Info("orchestrator stopped", "runs", o.runs.Len())
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// Submit компилирует граф и запускает run.
//
// order — необязательный порядок от вызывающего; он только проверяется,
// выполняется всегда скомпилированный порядок. Ошибки: ErrInvalidGraph
// (вместе с engine.GraphError), ErrInvalidConfig (вместе с blocks.ConfigError).
// Отменённый ctx — ошибка ctx, run не создаётся.
func (o *Orchestrator) Submit(ctx context.Context, graph *domain.Graph, order []string) (domain.RunState, error) {
	if o.IsStopped() {
		return domain.RunState{}, ErrOrchestratorStopped
	}
	if graph == nil {
		graph = &domain.Graph{}
	}

	// 1. Компиляция
	compiled, err := engine.Compile(graph)
	if err != nil {
		return domain.RunState{}, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	if len(compiled) == 0 {
		return domain.RunState{}, fmt.Errorf("%w: %w", ErrInvalidGraph, engine.ErrEmptyGraph)
	}

	// 2. Порядок от вызывающего
	if len(order) > 0 {
		if err := engine.VerifyOrder(graph, order); err != nil {
			return domain.RunState{}, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
		}
	}

	// 3. Конфигурации блоков
	for _, spec := range compiled {
		if err := o.blocks.ValidateSpec(spec); err != nil {
			return domain.RunState{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	// 4. Запрос мог быть отменён, пока шла проверка
	if err := ctx.Err(); err != nil {
		return domain.RunState{}, fmt.Errorf("submit run: %w", err)
	}

	// 5. Запуск
	c := newController(o.ctx, compiled, o.blocks, o.events, o.logger)
	o.runs.Add(c)
	c.start()

	o.logger.Info("run submitted", "run_id", c.ID(), "blocks", len(compiled))
	return c.Snapshot(), nil
}

// Status возвращает снимок состояния run.
func (o *Orchestrator) Status(id uuid.UUID) (domain.RunState, error) {
	c, err := o.runs.Get(id)
	if err != nil {
		return domain.RunState{}, err
	}
	return c.Snapshot(), nil
}

// Result возвращает доступный результат run.
func (o *Orchestrator) Result(id uuid.UUID) (*domain.Result, error) {
	c, err := o.runs.Get(id)
	if err != nil {
		return nil, err
	}
	return c.Result()
}

// Pause запрашивает паузу run.
func (o *Orchestrator) Pause(id uuid.UUID) (domain.RunState, error) {
	c, err := o.runs.Get(id)
	if err != nil {
		return domain.RunState{}, err
	}
	return c.Pause()
}

// Resume продолжает paused run.
func (o *Orchestrator) Resume(id uuid.UUID) (domain.RunState, error) {
	if o.IsStopped() {
		return domain.RunState{}, ErrOrchestratorStopped
	}
	c, err := o.runs.Get(id)
	if err != nil {
		return domain.RunState{}, err
	}
	return c.Resume()
}

// Delete удаляет неактивный run из реестра.
func (o *Orchestrator) Delete(id uuid.UUID) error {
	if err := o.runs.Delete(id); err != nil {
		return err
	}
	o.logger.Info("run deleted", "run_id", id)
	return nil
}

// List возвращает снимки всех run, от старых к новым.
func (o *Orchestrator) List() []domain.RunState {
	controllers := o.runs.List()
	states := make([]domain.RunState, 0, len(controllers))
	for _, c := range controllers {
		states = append(states, c.Snapshot())
	}
	return states
}

// BlockTypes возвращает схемы всех типов блоков.
func (o *Orchestrator) BlockTypes() []blocks.Schema {
	return o.blocks.Schemas()
}

// EvictExpired вытесняет завершённые и простаивающие paused run старше ttl.
// Возвращает количество вытесненных run.
func (o *Orchestrator) EvictExpired(ttl time.Duration) int {
	evicted := o.runs.EvictExpired(ttl, time.Now())
	if len(evicted) > 0 {
		o.logger.Info("evicted expired runs", "count", len(evicted), "ttl", ttl)
	}
	return len(evicted)
}

// RunsCount возвращает количество run в реестре.
func (o *Orchestrator) RunsCount() int {
	return o.runs.Len()
}
