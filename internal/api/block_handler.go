package api

import "net/http"

// ListBlockTypes возвращает схемы всех зарегистрированных блоков.
// GET /api/v1/blocks
func (h *Handler) ListBlockTypes(w http.ResponseWriter, r *http.Request) {
	schemas := h.orch.BlockTypes()
	List(w, schemas, len(schemas))
}
