package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrDuplicateColumn — в таблице несколько колонок с одинаковым именем.
var ErrDuplicateColumn = errors.New("duplicate column")

// Row — строка таблицы: колонка → скалярное значение.
//
// Значения: string, float64, bool или nil.
type Row map[string]any

// Table — данные, которые передаются между блоками.
//
// Инвариант: каждая строка содержит ровно объявленные колонки,
// отсутствующие значения хранятся как nil.
// Блоки не меняют входную таблицу, а возвращают новую.
type Table struct {
	Columns []string `json:"columns" msgpack:"columns"`
	Rows    []Row    `json:"rows" msgpack:"rows"`
}

// NewTable создаёт нормализованную таблицу.
//
// Отсутствующие в строке колонки заполняются nil, лишние ключи
// отбрасываются, значения приводятся к скалярам.
func NewTable(columns []string, rows []Row) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c)
		}
		seen[c] = true
	}

	t := &Table{
		Columns: slices.Clone(columns),
		Rows:    make([]Row, 0, len(rows)),
	}
	for _, r := range rows {
		row := make(Row, len(columns))
		for _, c := range columns {
			row[c] = NormalizeValue(r[c])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// EmptyTable возвращает таблицу без колонок и строк.
func EmptyTable() *Table {
	return &Table{Columns: []string{}, Rows: []Row{}}
}

// Len возвращает количество строк.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn проверяет наличие колонки.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Value возвращает значение ячейки. ok=false, если колонки нет.
func (t *Table) Value(row int, column string) (any, bool) {
	if row < 0 || row >= len(t.Rows) || !t.HasColumn(column) {
		return nil, false
	}
	return t.Rows[row][column], true
}

// Clone возвращает глубокую копию таблицы.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = cloneRow(r)
	}
	return out
}

// WithColumns возвращает копию таблицы с добавленными колонками.
// Уже существующие колонки не трогаются, новые заполняются nil.
func (t *Table) WithColumns(names ...string) *Table {
	out := t.Clone()
	for _, name := range names {
		if out.HasColumn(name) {
			continue
		}
		out.Columns = append(out.Columns, name)
		for _, r := range out.Rows {
			r[name] = nil
		}
	}
	return out
}

// Select возвращает новую таблицу с теми же колонками и строками,
// для которых keep вернул true. Порядок строк сохраняется.
func (t *Table) Select(keep func(Row) bool) *Table {
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, 0),
	}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, cloneRow(r))
		}
	}
	return out
}

// Preview возвращает копию первых n строк.
func (t *Table) Preview(n int) []Row {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = cloneRow(t.Rows[i])
	}
	return rows
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NormalizeValue приводит значение к скаляру таблицы.
//
// Целые и float32 → float64, NaN → nil, вложенные объекты и списки → JSON-строка,
// прочие типы → строка.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return x
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

// ParseCell восстанавливает тип значения из текстового представления
// (CSV, формы). Пустая строка → nil.
func ParseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// FormatCell возвращает текстовое представление значения.
// nil → пустая строка, целые float64 печатаются без дробной части.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
