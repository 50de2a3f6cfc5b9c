package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/mq"
	"github.com/shaiso/tableflow/internal/repo"
)

// Run DTOs

// SubmitRunRequest — запрос на запуск графа.
// Либо Nodes (+Edges), либо Blocks (линейная цепочка).
// Order — необязательный порядок выполнения, проверяется на топологичность.
type SubmitRunRequest struct {
	Nodes  []domain.BlockSpec `json:"nodes,omitempty"`
	Edges  []domain.Edge      `json:"edges,omitempty"`
	Blocks []domain.BlockSpec `json:"blocks,omitempty"`
	Order  []string           `json:"order,omitempty"`
}

// Graph возвращает граф из запроса.
func (r SubmitRunRequest) Graph() *domain.Graph {
	return mq.RunSubmitPayload(r).Graph()
}

// SubmitRunResponse — ответ на submit.
type SubmitRunResponse struct {
	ID     uuid.UUID        `json:"id"`
	Status domain.RunStatus `json:"status"`
}

// RunResponse — ответ со снимком run.
type RunResponse struct {
	domain.RunState
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// RunFromDomain конвертирует domain.RunState в RunResponse.
func RunFromDomain(s domain.RunState) RunResponse {
	return RunResponse{
		RunState:   s,
		DurationMs: s.Duration().Milliseconds(),
	}
}

// Source DTOs

// SourceResponse — метаданные источника.
type SourceResponse struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceFromRepo конвертирует repo.SourceInfo в SourceResponse.
func SourceFromRepo(s repo.SourceInfo) SourceResponse {
	return SourceResponse{
		Name:      s.Name,
		Size:      s.Size,
		UpdatedAt: s.UpdatedAt,
	}
}

// PreviewResponse — первые строки таблицы.
type PreviewResponse struct {
	Name     string       `json:"name"`
	Columns  []string     `json:"columns"`
	RowCount int          `json:"row_count"`
	Rows     []domain.Row `json:"rows"`
}
