package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/tableflow/internal/telemetry"
	"golang.org/x/sync/semaphore"
)

// Default configuration values.
const (
	defaultConcurrency = 10
	defaultCallTimeout = 15 * time.Minute
)

// CallFunc выполняет один удалённый вызов для строки index.
type CallFunc func(ctx context.Context, index int) (map[string]any, error)

// Result — результат вызова для одной строки.
//
// Err != nil означает, что строка не получила значения (RowError);
// это не ошибка всего пакета вызовов.
type Result struct {
	Index    int
	Value    map[string]any
	Err      error
	Attempts int
}

// Options — параметры одного Dispatch.
type Options struct {
	// Concurrency переопределяет Config.Concurrency, если > 0.
	Concurrency int

	// OnProgress вызывается после завершения каждого вызова.
	// Вызовы сериализованы, done растёт монотонно.
	OnProgress func(done, total int)

	// ShouldPause проверяется перед запуском каждого вызова.
	ShouldPause func() bool
}

// Config — конфигурация Dispatcher.
type Config struct {
	Concurrency int           // максимум одновременных вызовов (default: 10)
	Retry       RetryPolicy   // политика повторов
	CallTimeout time.Duration // таймаут одной попытки (default: 15m)
	Logger      *slog.Logger
}

// Dispatcher выполняет независимые удалённые вызовы с ограничением
// параллельности и повторами.
//
// Исчерпанные повторы одной строки не прерывают пакет.
type Dispatcher struct {
	concurrency int
	retry       RetryPolicy
	callTimeout time.Duration
	logger      *slog.Logger
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		concurrency: concurrency,
		retry:       cfg.Retry.withDefaults(),
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Concurrency возвращает лимит параллельности по умолчанию.
func (d *Dispatcher) Concurrency() int {
	return d.concurrency
}

// Dispatch выполняет n вызовов и возвращает результаты в порядке индексов.
//
// Если ShouldPause вернул true, новые вызовы не запускаются, запущенные
// дожидаются завершения, и возвращается ErrPaused вместе с собранными
// результатами. Отмена ctx обрабатывается так же, с ошибкой ctx.Err().
// Незапущенные строки получают ErrNotStarted.
func (d *Dispatcher) Dispatch(ctx context.Context, n int, call CallFunc, opts Options) ([]Result, error) {
	limit := d.concurrency
	if opts.Concurrency > 0 {
		limit = opts.Concurrency
	}

	results := make([]Result, n)
	for i := range results {
		results[i] = Result{Index: i, Err: ErrNotStarted}
	}

	sem := semaphore.NewWeighted(int64(limit))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		done    int
		stopErr error
	)

	paused := func() bool {
		return opts.ShouldPause != nil && opts.ShouldPause()
	}

	for i := 0; i < n; i++ {
		if paused() {
			stopErr = ErrPaused
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}
		// Пауза могла быть запрошена, пока ждали слот
		if paused() {
			sem.Release(1)
			stopErr = ErrPaused
			break
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer sem.Release(1)

			res := d.callWithRetry(ctx, index, call)

			mu.Lock()
			results[index] = res
			done++
			if opts.OnProgress != nil {
				opts.OnProgress(done, n)
			}
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	if stopErr == nil && ctx.Err() != nil {
		stopErr = ctx.Err()
	}
	if stopErr != nil {
		d.logger.Info("dispatch stopped early",
			"completed", done,
			"total", n,
			"reason", stopErr,
		)
	}

	return results, stopErr
}

// callWithRetry выполняет вызов с повторами согласно RetryPolicy.
func (d *Dispatcher) callWithRetry(ctx context.Context, index int, call CallFunc) Result {
	res := Result{Index: index}

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		value, err := d.callOnce(ctx, index, call)
		if err == nil {
			telemetry.RemoteCallsTotal.WithLabelValues("success").Inc()
			res.Value = value
			res.Err = nil
			return res
		}
		res.Err = err

		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}

		if attempt >= d.retry.MaxAttempts || !shouldRetry(err) {
			telemetry.RemoteCallsTotal.WithLabelValues("failed").Inc()
			d.logger.Warn("remote call failed",
				"row", index,
				"attempts", attempt,
				"error", err,
			)
			return res
		}

		telemetry.RemoteCallsTotal.WithLabelValues("retry").Inc()
		delay := calculateBackoff(attempt, d.retry)

		d.logger.Debug("retrying remote call",
			"row", index,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		// Ждём с учётом context
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		}
	}
}

// callOnce выполняет одну попытку с таймаутом.
func (d *Dispatcher) callOnce(ctx context.Context, index int, call CallFunc) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	telemetry.RemoteCallsInFlight.Inc()
	defer telemetry.RemoteCallsInFlight.Dec()

	start := time.Now()
	defer func() {
		telemetry.RemoteCallDuration.Observe(time.Since(start).Seconds())
	}()

	return call(ctx, index)
}
