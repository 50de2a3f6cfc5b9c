// Package remote содержит клиент внешнего сервиса обогащения лидов.
//
// Service — контракт, который используют блоки enrich и find_email.
// Client — HTTP-реализация (асинхронные задачи с опросом статуса).
// Ошибки HTTP 4xx (кроме 408/429) помечаются как Permanent и не повторяются.
package remote
