package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/repo"
	"github.com/vmihailenco/msgpack/v5"
)

// maxGraphBytes — ограничение на размер тела submit.
const maxGraphBytes = 1 << 20

// Форматы выгрузки результата.
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatMsgpack = "msgpack"
)

// ListRuns возвращает список runs.
// GET /api/v1/runs?status=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	status := domain.RunStatus(r.URL.Query().Get("status"))

	runs := h.orch.List()
	result := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		if status != "" && run.Status != status {
			continue
		}
		result = append(result, RunFromDomain(run))
	}

	List(w, result, len(result))
}

// SubmitRun компилирует граф и запускает run.
// POST /api/v1/runs
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGraphBytes)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	state, err := h.orch.Submit(r.Context(), req.Graph(), req.Order)
	if HandleError(w, h.log(r), err) {
		return
	}

	Created(w, SubmitRunResponse{ID: state.ID, Status: state.Status})
}

// GetRun возвращает снимок run.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	state, err := h.orch.Status(id)
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, RunFromDomain(state))
}

// GetRunResult выгружает результат run.
// GET /api/v1/runs/{id}/result?format=json|csv|msgpack
func (h *Handler) GetRunResult(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatCSV, FormatMsgpack:
	default:
		BadRequest(w, "unsupported format: "+format)
		return
	}

	result, err := h.orch.Result(id)
	if HandleError(w, h.log(r), err) {
		return
	}

	w.Header().Set("X-Result-Partial", fmt.Sprint(result.IsPartial))

	switch format {
	case FormatJSON:
		Success(w, result)

	case FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id.String()+".csv"))
		w.WriteHeader(http.StatusOK)
		if err := repo.WriteCSV(w, result.Table()); err != nil {
			h.log(r).Error("failed to write csv result", "run_id", id, "error", err)
		}

	case FormatMsgpack:
		w.Header().Set("Content-Type", "application/msgpack")
		w.WriteHeader(http.StatusOK)
		if err := msgpack.NewEncoder(w).Encode(result); err != nil {
			h.log(r).Error("failed to write msgpack result", "run_id", id, "error", err)
		}
	}
}

// PauseRun запрашивает паузу run.
// POST /api/v1/runs/{id}/pause
func (h *Handler) PauseRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	state, err := h.orch.Pause(id)
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, RunFromDomain(state))
}

// ResumeRun продолжает run после паузы.
// POST /api/v1/runs/{id}/resume
func (h *Handler) ResumeRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	state, err := h.orch.Resume(id)
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, RunFromDomain(state))
}

// DeleteRun удаляет завершённый или приостановленный run из реестра.
// DELETE /api/v1/runs/{id}
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}

	if HandleError(w, h.log(r), h.orch.Delete(id)) {
		return
	}

	NoContent(w)
}

// runID разбирает {id} из пути. При ошибке сам отвечает 400.
func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}
