package api

import (
	"log/slog"
	"net/http"

	"github.com/shaiso/tableflow/internal/orchestrator"
	"github.com/shaiso/tableflow/internal/repo"
	"github.com/shaiso/tableflow/internal/telemetry"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orch   *orchestrator.Orchestrator
	store  repo.TableStore
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Store        repo.TableStore // источники; nil — эндпоинты /sources отвечают 404
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orch:   cfg.Orchestrator,
		store:  cfg.Store,
		logger: logger,
	}
}

// log возвращает логгер запроса (с request_id), если он есть в контексте.
func (h *Handler) log(r *http.Request) *slog.Logger {
	if r == nil {
		return h.logger
	}
	return telemetry.FromContext(r.Context())
}
