// Package worker выполняет удалённые вызовы для строк таблицы.
//
// # Обзор
//
// Dispatcher запускает N независимых вызовов (по одному на строку)
// с фиксированным лимитом параллельности. Используется блоками
// enrich и find_email.
//
//	d := worker.New(worker.Config{
//	    Concurrency: 10,
//	    Retry:       worker.RetryPolicy{MaxAttempts: 3},
//	    CallTimeout: 15 * time.Minute,
//	    Logger:      logger,
//	})
//
//	results, err := d.Dispatch(ctx, table.Len(), call, worker.Options{
//	    OnProgress:  func(done, total int) { ... },
//	    ShouldPause: pauseRequested,
//	})
//
// # Retry
//
// Retry выполняется в процессе для каждого вызова отдельно.
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
//
// Ошибки, помеченные remote.Permanent (HTTP 4xx кроме 408/429), не повторяются.
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Ошибка строки (Result.Err) — вызов не удался после всех попыток,
//     строка получает null-значения, пакет продолжается
//   - Ошибка Dispatch — ErrPaused или отмена контекста: новые вызовы
//     не запускаются, запущенные дожидаются завершения
package worker
