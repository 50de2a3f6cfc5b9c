package worker

import "errors"

// Ошибки диспетчера.
var (
	// ErrPaused — запрошена пауза: новые вызовы не запускались,
	// уже запущенные завершены.
	ErrPaused = errors.New("dispatch paused")

	// ErrNotStarted — вызов для строки не был запущен (пауза или отмена).
	ErrNotStarted = errors.New("call not started")
)
