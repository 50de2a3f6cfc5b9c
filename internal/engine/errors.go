package engine

import "errors"

// Ошибки графа (GraphError). Граф с такой ошибкой отклоняется при submit,
// run не создаётся.
var (
	// ErrEmptyGraph — граф не содержит блоков.
	ErrEmptyGraph = errors.New("nothing to run")

	// ErrDisconnectedGraph — блоки графа не связаны в один порядок.
	ErrDisconnectedGraph = errors.New("disconnected workflow")

	// ErrCyclicGraph — обнаружен цикл.
	ErrCyclicGraph = errors.New("cyclic graph")

	// ErrEmptyBlockID — блок не имеет ID.
	ErrEmptyBlockID = errors.New("block has empty ID")

	// ErrDuplicateBlockID — несколько блоков с одинаковым ID.
	ErrDuplicateBlockID = errors.New("duplicate block ID")

	// ErrUnknownBlockType — неизвестный тип блока.
	ErrUnknownBlockType = errors.New("unknown block type")

	// ErrUnknownEdgeNode — ребро ссылается на несуществующий блок.
	ErrUnknownEdgeNode = errors.New("edge references unknown block")

	// ErrInvalidOrder — переданный порядок не является топологическим.
	ErrInvalidOrder = errors.New("invalid execution order")
)

// GraphError — ошибка графа с контекстом.
type GraphError struct {
	NodeID  string // ID блока, где обнаружена ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return "block " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError создаёт новую ошибку графа.
func NewGraphError(nodeID, field, message string, err error) *GraphError {
	return &GraphError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsGraphError проверяет, относится ли ошибка к ошибкам графа.
func IsGraphError(err error) bool {
	var gErr *GraphError
	return errors.As(err, &gErr) ||
		errors.Is(err, ErrEmptyGraph) ||
		errors.Is(err, ErrDisconnectedGraph) ||
		errors.Is(err, ErrCyclicGraph)
}
