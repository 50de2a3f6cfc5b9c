package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output печатает данные в stdout (таблица или JSON),
// а сообщения о ходе работы в stderr, чтобы не мешать пайпам.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: os.Stdout, errW: os.Stderr}
}

// Print печатает rows под headers или, в режиме --json, сам jsonData.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table печатает выровненную таблицу с подчёркнутыми заголовками.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}

	for _, line := range append([][]string{headers, underline}, rows...) {
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
}

func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Error(err.Error())
	}
}

// Success — информационное сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

func (o *Output) Error(msg string) {
	fmt.Fprintf(o.errW, "Error: %s\n", msg)
}

// ResultRows раскладывает строки результата по columns.
func ResultRows(columns []string, rows []map[string]any) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = formatValue(row[col])
		}
		out = append(out, cells)
	}
	return out
}

// formatValue — текст ячейки: nil пусто, числа без экспоненты.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}
