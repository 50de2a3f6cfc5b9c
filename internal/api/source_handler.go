package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shaiso/tableflow/internal/repo"
)

const (
	// maxSourceBytes — ограничение на размер загружаемой таблицы.
	maxSourceBytes = 32 << 20

	defaultPreviewRows = 10
	maxPreviewRows     = 1000
)

// ListSources возвращает список сохранённых таблиц.
// GET /api/v1/sources
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	sources, err := h.store.List(r.Context())
	if HandleError(w, h.log(r), err) {
		return
	}

	result := make([]SourceResponse, len(sources))
	for i, s := range sources {
		result[i] = SourceFromRepo(s)
	}

	List(w, result, len(result))
}

// UploadSource сохраняет CSV из тела запроса под именем {name}.
// PUT /api/v1/sources/{name}
func (h *Handler) UploadSource(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	name := r.PathValue("name")
	if HandleError(w, h.log(r), repo.ValidateName(name)) {
		return
	}

	table, err := repo.ReadCSV(http.MaxBytesReader(w, r.Body, maxSourceBytes))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if HandleError(w, h.log(r), h.store.Save(r.Context(), name, table)) {
		return
	}

	h.log(r).Info("source uploaded", "name", name, "rows", table.Len())

	Created(w, PreviewResponse{
		Name:     name,
		Columns:  table.Columns,
		RowCount: table.Len(),
		Rows:     table.Preview(defaultPreviewRows),
	})
}

// DownloadSource отдаёт таблицу в CSV.
// GET /api/v1/sources/{name}
func (h *Handler) DownloadSource(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	name := r.PathValue("name")
	table, err := h.store.Load(r.Context(), name)
	if HandleError(w, h.log(r), err) {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := repo.WriteCSV(w, table); err != nil {
		h.log(r).Error("failed to write source", "name", name, "error", err)
	}
}

// PreviewSource возвращает первые строки таблицы.
// GET /api/v1/sources/{name}/preview?rows=10
func (h *Handler) PreviewSource(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	n := defaultPreviewRows
	if s := r.URL.Query().Get("rows"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			BadRequest(w, "invalid rows")
			return
		}
		n = min(v, maxPreviewRows)
	}

	name := r.PathValue("name")
	table, err := h.store.Load(r.Context(), name)
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, PreviewResponse{
		Name:     name,
		Columns:  table.Columns,
		RowCount: table.Len(),
		Rows:     table.Preview(n),
	})
}

// requireStore отвечает 404, если хранилище источников не настроено.
func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		NotFound(w, "sources are not configured")
		return false
	}
	return true
}
