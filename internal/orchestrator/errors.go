package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в реестре.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidGraph — граф отклонён при submit (пустой, цикл, несвязный).
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrInvalidConfig — конфигурация блока не прошла валидацию при submit.
	ErrInvalidConfig = errors.New("invalid block config")

	// ErrInvalidTransition — действие неприменимо в текущем статусе run.
	ErrInvalidTransition = errors.New("invalid run state transition")

	// ErrResultNotReady — ни один блок ещё не завершился.
	ErrResultNotReady = errors.New("result not ready")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
