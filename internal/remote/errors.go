package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Ошибки клиента сервиса обогащения.
var (
	// ErrNotConfigured — не задан адрес или API-ключ сервиса.
	ErrNotConfigured = errors.New("enrichment service is not configured")

	// ErrRequest — ошибка транспорта или разбора ответа.
	ErrRequest = errors.New("enrichment request failed")

	// ErrJobFailed — сервис сообщил о неуспешном завершении задачи.
	ErrJobFailed = errors.New("enrichment job failed")

	// ErrJobTimeout — задача не завершилась за MaxWait.
	ErrJobTimeout = errors.New("enrichment job timed out")
)

// HTTPError — ответ сервиса с кодом >= 400.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Permanent возвращает true для ошибок, которые бессмысленно повторять:
// 4xx, кроме 408 и 429.
func (e *HTTPError) Permanent() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// permanentError помечает ошибку как неповторяемую.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Permanent() bool { return true }

// Permanent оборачивает ошибку так, что диспетчер не будет её повторять.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка как неповторяемая.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
