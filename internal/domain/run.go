package domain

import (
	"time"

	"github.com/google/uuid"
)

// PreviewRows — сколько строк результата включается в снимок статуса.
const PreviewRows = 10

// RunState — снимок состояния run.
//
// Изменяется только контроллером, который владеет run.
// Все остальные получают копии.
type RunState struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Blocks — состояние блоков в порядке выполнения.
	Blocks []BlockRunState `json:"blocks"`

	// CurrentBlockIndex — индекс блока, который выполняется
	// (или с которого продолжится выполнение после resume).
	CurrentBlockIndex int `json:"current_block_index"`

	// IsPartial — true, если доступный результат получен не всеми блоками.
	IsPartial bool `json:"is_partial"`

	// HasResult — true, если хотя бы один блок завершился и результат доступен.
	HasResult bool `json:"has_result"`

	// ResultColumns, ResultRowCount, ResultPreview — сводка по доступному результату.
	ResultColumns  []string `json:"result_columns,omitempty"`
	ResultRowCount int      `json:"result_row_count"`
	ResultPreview  []Row    `json:"result_preview,omitempty"`

	// Error — текст ошибки, если run завершился с failed.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *RunState) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *RunState) IsFinished() bool {
	return r.Status.IsTerminal()
}

// BlockRunState — состояние одного блока внутри run.
type BlockRunState struct {
	BlockID   string      `json:"block_id"`
	BlockType BlockType   `json:"block_type"`
	Status    BlockStatus `json:"status"`

	// Progress — процент выполнения, 0–100.
	Progress int `json:"progress"`

	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result — результат run (полный или частичный).
type Result struct {
	Columns   []string `json:"columns" msgpack:"columns"`
	RowCount  int      `json:"row_count" msgpack:"row_count"`
	Rows      []Row    `json:"rows" msgpack:"rows"`
	IsPartial bool     `json:"is_partial" msgpack:"is_partial"`
}

// ResultFromTable собирает Result из таблицы.
func ResultFromTable(t *Table, partial bool) *Result {
	if t == nil {
		t = EmptyTable()
	}
	c := t.Clone()
	return &Result{
		Columns:   c.Columns,
		RowCount:  len(c.Rows),
		Rows:      c.Rows,
		IsPartial: partial,
	}
}

// Table возвращает результат как Table.
func (r *Result) Table() *Table {
	return &Table{Columns: r.Columns, Rows: r.Rows}
}
