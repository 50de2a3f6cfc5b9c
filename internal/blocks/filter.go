package blocks

import (
	"context"
	"strconv"
	"strings"

	"github.com/shaiso/tableflow/internal/domain"
)

// Операторы фильтра.
const (
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpContains  = "contains"
	OpGT        = "gt"
	OpLT        = "lt"
	OpIsTrue    = "is_true"
	OpIsFalse   = "is_false"
	OpIsNull    = "is_null"
	OpIsNotNull = "is_not_null"
)

// operatorAliases — альтернативные имена операторов.
var operatorAliases = map[string]string{
	"greater_than": OpGT,
	"less_than":    OpLT,
}

// FilterConfig — конфигурация блока filter.
type FilterConfig struct {
	Column        string `json:"column" validate:"required"`
	Operator      string `json:"operator" validate:"oneof=equals not_equals contains gt lt is_true is_false is_null is_not_null"`
	Value         any    `json:"value"`
	CaseSensitive bool   `json:"case_sensitive"`
}

// FilterBlock оставляет строки, для которых выполняется условие.
//
// Отсутствующая колонка или несравнимые типы — строка не проходит,
// это не ошибка блока. Пустой результат допустим.
type FilterBlock struct{}

// NewFilterBlock создаёт FilterBlock.
func NewFilterBlock() *FilterBlock {
	return &FilterBlock{}
}

// Type возвращает тип блока.
func (b *FilterBlock) Type() domain.BlockType {
	return domain.BlockTypeFilter
}

// Schema возвращает схему конфигурации.
func (b *FilterBlock) Schema() Schema {
	return Schema{
		Type:        domain.BlockTypeFilter,
		Name:        "Filter",
		Description: "Keep rows where the column satisfies a condition",
		Fields: []FieldSchema{
			{Name: "column", Type: "string", Required: true, Description: "Column to test"},
			{
				Name:    "operator",
				Type:    "string",
				Default: OpContains,
				Enum: []string{
					OpEquals, OpNotEquals, OpContains, OpGT, OpLT,
					OpIsTrue, OpIsFalse, OpIsNull, OpIsNotNull,
				},
			},
			{Name: "value", Type: "any", Description: "Value to compare against (unused by is_* operators)"},
			{Name: "case_sensitive", Type: "boolean", Default: false, Description: "Case-sensitive string comparison"},
		},
	}
}

// Validate проверяет конфигурацию.
func (b *FilterBlock) Validate(config map[string]any) error {
	_, err := b.parseConfig(config)
	return err
}

func (b *FilterBlock) parseConfig(config map[string]any) (*FilterConfig, error) {
	cfg := &FilterConfig{Operator: OpContains}
	if err := decodeConfig(domain.BlockTypeFilter, normalizeOperator(config), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalizeOperator заменяет алиасы операторов, не меняя исходную map.
func normalizeOperator(config map[string]any) map[string]any {
	op, ok := config["operator"].(string)
	if !ok {
		return config
	}
	canonical, isAlias := operatorAliases[op]
	if !isAlias {
		return config
	}
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}
	out["operator"] = canonical
	return out
}

// Apply фильтрует входную таблицу. Порядок строк сохраняется.
func (b *FilterBlock) Apply(ctx context.Context, req *Request) (*domain.Table, error) {
	cfg, err := b.parseConfig(req.Config)
	if err != nil {
		return nil, err
	}
	input, err := req.requireInput()
	if err != nil {
		return nil, err
	}

	req.progress(10)

	hasColumn := input.HasColumn(cfg.Column)
	out := input.Select(func(row domain.Row) bool {
		if !hasColumn {
			return false
		}
		return matchRow(row[cfg.Column], cfg)
	})

	req.progress(100)
	return out, nil
}

// matchRow проверяет условие для значения ячейки.
func matchRow(cell any, cfg *FilterConfig) bool {
	switch cfg.Operator {
	case OpIsNull:
		return cell == nil || cell == ""
	case OpIsNotNull:
		return cell != nil && cell != ""
	case OpIsTrue:
		b, ok := asBool(cell)
		return ok && b
	case OpIsFalse:
		b, ok := asBool(cell)
		return ok && !b
	}

	if cell == nil {
		return false
	}

	switch cfg.Operator {
	case OpContains:
		haystack, needle := domain.FormatCell(cell), domain.FormatCell(cfg.Value)
		if !cfg.CaseSensitive {
			haystack, needle = strings.ToLower(haystack), strings.ToLower(needle)
		}
		return strings.Contains(haystack, needle)
	case OpEquals:
		c, ok := compare(cell, cfg.Value, cfg.CaseSensitive)
		return ok && c == 0
	case OpNotEquals:
		c, ok := compare(cell, cfg.Value, cfg.CaseSensitive)
		return ok && c != 0
	case OpGT:
		c, ok := compare(cell, cfg.Value, true)
		return ok && c > 0
	case OpLT:
		c, ok := compare(cell, cfg.Value, true)
		return ok && c < 0
	}
	return false
}

// compare сравнивает значение ячейки с value.
//
// Если оба значения числовые (в том числе строки с числами), сравниваются
// как числа. Если оба строковые — лексикографически. Булевы сравниваются
// только с булевыми. Иначе ok=false.
func compare(cell, value any, caseSensitive bool) (int, bool) {
	if value == nil {
		return 0, false
	}

	if a, okA := asNumber(cell); okA {
		if b, okB := asNumber(value); okB {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if a, okA := cell.(bool); okA {
		b, okB := asBool(value)
		if !okB {
			return 0, false
		}
		if a == b {
			return 0, true
		}
		if !a {
			return -1, true
		}
		return 1, true
	}

	a, okA := cell.(string)
	b, okB := value.(string)
	if !okA || !okB {
		return 0, false
	}
	if !caseSensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	return strings.Compare(a, b), true
}

// asNumber приводит значение к float64: числа и строки с числами.
func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// asBool приводит значение к bool: bool и строки "true"/"false".
func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	return false, false
}

