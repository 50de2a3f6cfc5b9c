package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Health
	mux.HandleFunc("GET /healthz", h.Health)

	// Blocks
	mux.Handle("GET /api/v1/blocks", chain(http.HandlerFunc(h.ListBlockTypes)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.SubmitRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("DELETE /api/v1/runs/{id}", chain(http.HandlerFunc(h.DeleteRun)))
	mux.Handle("GET /api/v1/runs/{id}/result", chain(http.HandlerFunc(h.GetRunResult)))
	mux.Handle("POST /api/v1/runs/{id}/pause", chain(http.HandlerFunc(h.PauseRun)))
	mux.Handle("POST /api/v1/runs/{id}/resume", chain(http.HandlerFunc(h.ResumeRun)))

	// Sources
	mux.Handle("GET /api/v1/sources", chain(http.HandlerFunc(h.ListSources)))
	mux.Handle("GET /api/v1/sources/{name}", chain(http.HandlerFunc(h.DownloadSource)))
	mux.Handle("PUT /api/v1/sources/{name}", chain(http.HandlerFunc(h.UploadSource)))
	mux.Handle("GET /api/v1/sources/{name}/preview", chain(http.HandlerFunc(h.PreviewSource)))
}

// Health отвечает 200, пока сервер принимает запросы.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   h.orch.RunsCount(),
	})
}
