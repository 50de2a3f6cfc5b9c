package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed
//	                  ↘ paused → running (resume)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "running"

	// RunStatusPaused — run остановлен на границе блока и ждёт resume.
	RunStatusPaused RunStatus = "paused"

	// RunStatusCompleted — все блоки выполнены успешно.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed — один из блоков завершился с ошибкой.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// BlockStatus — статус выполнения одного блока внутри run.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed
//
// Блок, прерванный паузой, возвращается в pending.
type BlockStatus string

const (
	BlockStatusPending   BlockStatus = "pending"
	BlockStatusRunning   BlockStatus = "running"
	BlockStatusCompleted BlockStatus = "completed"
	BlockStatusFailed    BlockStatus = "failed"
	BlockStatusSkipped   BlockStatus = "skipped"
)

// IsTerminal возвращает true, если блок больше не будет выполняться.
func (s BlockStatus) IsTerminal() bool {
	switch s {
	case BlockStatusCompleted, BlockStatusFailed, BlockStatusSkipped:
		return true
	default:
		return false
	}
}
