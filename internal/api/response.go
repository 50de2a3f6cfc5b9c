package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/tableflow/internal/engine"
	"github.com/shaiso/tableflow/internal/orchestrator"
	"github.com/shaiso/tableflow/internal/repo"
)

// ErrorCode — машинный код ошибки в ответе API.
type ErrorCode string

const (
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidGraph   ErrorCode = "INVALID_GRAPH"
	ErrCodeInvalidConfig  ErrorCode = "INVALID_CONFIG"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeResultNotReady ErrorCode = "RESULT_NOT_READY"
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — тело ответа с ошибкой: {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код, сообщение и блок, из-за которого отклонён граф.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	NodeID  string    `json:"node_id,omitempty"`
}

// DataResponse — тело успешного ответа: {"data": ...}.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — тело ответа со списком и его длиной.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON пишет v с заданным статусом.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Success(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, DataResponse{Data: data}) }

func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, DataResponse{Data: data}) }

func NoContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error пишет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError логирует err и отвечает 500 без подробностей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// errorRule — статус и код для ошибок, совпадающих с одним из targets.
// Пустой message — в ответ идёт текст ошибки.
type errorRule struct {
	targets []error
	status  int
	code    ErrorCode
	message string
}

// errorRules проверяются по порядку, первое совпадение выигрывает.
var errorRules = []errorRule{
	{[]error{orchestrator.ErrInvalidGraph}, http.StatusBadRequest, ErrCodeInvalidGraph, ""},
	{[]error{orchestrator.ErrInvalidConfig}, http.StatusBadRequest, ErrCodeInvalidConfig, ""},
	{[]error{orchestrator.ErrRunNotFound, repo.ErrNotFound}, http.StatusNotFound, ErrCodeNotFound, ""},
	{[]error{orchestrator.ErrInvalidTransition}, http.StatusConflict, ErrCodeInvalidState, ""},
	{[]error{orchestrator.ErrResultNotReady}, http.StatusConflict, ErrCodeResultNotReady, "no block has completed yet"},
	{[]error{repo.ErrInvalidName, repo.ErrInvalidData}, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{[]error{orchestrator.ErrOrchestratorStopped}, http.StatusServiceUnavailable, ErrCodeUnavailable, ""},
}

func (r errorRule) matches(err error) bool {
	for _, target := range r.targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleError переводит ошибку движка или хранилища в HTTP ответ.
// Возвращает false, если err == nil и ответ не записан.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	for _, rule := range errorRules {
		if !rule.matches(err) {
			continue
		}

		detail := ErrorDetail{Code: rule.code, Message: rule.message}
		if detail.Message == "" {
			detail.Message = err.Error()
		}
		var graphErr *engine.GraphError
		if errors.As(err, &graphErr) {
			detail.NodeID = graphErr.NodeID
		}
		JSON(w, rule.status, ErrorResponse{Error: detail})
		return true
	}

	InternalError(w, logger, err)
	return true
}
