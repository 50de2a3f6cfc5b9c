package blocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/worker"
)

// Ошибки блоков.
var (
	// ErrBlockNotFound — тип блока не найден в реестре.
	ErrBlockNotFound = errors.New("block type not found")

	// ErrInvalidConfig — невалидная конфигурация блока (ConfigError).
	ErrInvalidConfig = errors.New("invalid block config")

	// ErrMissingInput — блоку нужна входная таблица, а её нет.
	ErrMissingInput = errors.New("block has no input table")

	// ErrBlockFailed — системная ошибка блока (BlockError).
	ErrBlockFailed = errors.New("block failed")

	// ErrPaused — блок прерван запросом паузы до завершения.
	// Частичный результат блока отбрасывается.
	ErrPaused = worker.ErrPaused
)

// Block — интерфейс для типов блоков.
//
// Каждый тип блока (read, write, filter, enrich, find_email) реализует этот интерфейс.
// Apply не меняет входную таблицу и возвращает новую.
type Block interface {
	// Type возвращает тип блока.
	Type() domain.BlockType

	// Schema возвращает схему конфигурации блока.
	Schema() Schema

	// Validate проверяет конфигурацию. Ошибка — *ConfigError.
	Validate(config map[string]any) error

	// Apply выполняет блок.
	// Блок должен проверять ctx.Done() для graceful shutdown.
	Apply(ctx context.Context, req *Request) (*domain.Table, error)
}

// Request — входные данные для выполнения блока.
type Request struct {
	// BlockID — идентификатор блока в графе.
	BlockID string

	// Config — конфигурация блока.
	Config map[string]any

	// Input — выход предыдущего блока. nil для первого блока.
	Input *domain.Table

	// OnProgress получает процент выполнения 0–100. Может быть nil.
	OnProgress func(percent int)

	// PauseRequested сообщает, что запрошена пауза. Может быть nil.
	// Блоки на Dispatcher прекращают запускать новые вызовы.
	PauseRequested func() bool
}

// progress сообщает процент выполнения, если есть получатель.
func (r *Request) progress(percent int) {
	if r.OnProgress != nil {
		r.OnProgress(percent)
	}
}

// requireInput возвращает входную таблицу или ошибку ErrMissingInput.
func (r *Request) requireInput() (*domain.Table, error) {
	if r.Input == nil {
		return nil, NewBlockError(r.BlockID, ErrMissingInput)
	}
	return r.Input, nil
}

// ConfigError — ошибка конфигурации блока.
type ConfigError struct {
	BlockType domain.BlockType // тип блока
	Field     string           // поле конфигурации
	Message   string           // описание ошибки
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s config: %s: %s", e.BlockType, e.Field, e.Message)
	}
	return fmt.Sprintf("%s config: %s", e.BlockType, e.Message)
}

// Unwrap возвращает ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// BlockError — системная ошибка блока: источник недоступен, нет входа и т.п.
// Прерывает run, частичный результат сохраняется.
type BlockError struct {
	BlockID string
	Err     error
}

// Error реализует интерфейс error.
func (e *BlockError) Error() string {
	return "block " + e.BlockID + ": " + e.Err.Error()
}

// Unwrap возвращает исходную ошибку.
func (e *BlockError) Unwrap() []error {
	return []error{ErrBlockFailed, e.Err}
}

// NewBlockError создаёт BlockError.
func NewBlockError(blockID string, err error) *BlockError {
	return &BlockError{BlockID: blockID, Err: err}
}
