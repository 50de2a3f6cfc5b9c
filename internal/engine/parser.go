package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/tableflow/internal/domain"
)

// Допустимые типы блоков.
var validBlockTypes = map[domain.BlockType]bool{
	domain.BlockTypeRead:      true,
	domain.BlockTypeWrite:     true,
	domain.BlockTypeFilter:    true,
	domain.BlockTypeEnrich:    true,
	domain.BlockTypeFindEmail: true,
}

// Validate выполняет структурную валидацию графа.
//
// Проверяет:
// - Наличие ID и их уникальность
// - Корректность типов блоков
// - Что рёбра ссылаются на существующие блоки
//
// Пустой граф структурно валиден; порядок и связность проверяет Compile.
// Конфигурация блоков здесь не проверяется, это делает пакет blocks.
func Validate(graph *domain.Graph) error {
	if graph == nil {
		return nil
	}

	ids := make(map[string]bool, len(graph.Nodes))
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		if err := validateNode(node, ids); err != nil {
			return err
		}
	}

	for _, e := range graph.Edges {
		if !ids[e.Source] {
			return NewGraphError(e.Target, "edges",
				fmt.Sprintf("edge source %q is not a block of this graph", e.Source), ErrUnknownEdgeNode)
		}
		if !ids[e.Target] {
			return NewGraphError(e.Source, "edges",
				fmt.Sprintf("edge target %q is not a block of this graph", e.Target), ErrUnknownEdgeNode)
		}
	}

	return nil
}

// validateNode валидирует один блок.
// ids — уже встреченные ID (для проверки уникальности).
func validateNode(node *domain.BlockSpec, ids map[string]bool) error {
	if node.ID == "" {
		return NewGraphError("", "id", "block has empty ID", ErrEmptyBlockID)
	}

	if ids[node.ID] {
		return NewGraphError(node.ID, "id",
			fmt.Sprintf("duplicate block ID: %s", node.ID), ErrDuplicateBlockID)
	}
	ids[node.ID] = true

	if !validBlockTypes[node.Type] {
		return NewGraphError(node.ID, "type",
			fmt.Sprintf("unknown block type: %s (valid: %v)", node.Type, ValidBlockTypes()), ErrUnknownBlockType)
	}

	return nil
}

// IsValidBlockType проверяет, является ли тип допустимым.
func IsValidBlockType(t domain.BlockType) bool {
	return validBlockTypes[t]
}

// ValidBlockTypes возвращает список допустимых типов блоков (отсортирован).
func ValidBlockTypes() []domain.BlockType {
	types := make([]domain.BlockType, 0, len(validBlockTypes))
	for t := range validBlockTypes {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
