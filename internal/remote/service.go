package remote

import "context"

// Lead — идентифицирующие поля строки, которые отправляются в сервис.
type Lead map[string]any

// Field — поле, которое нужно получить при обогащении.
type Field struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service — контракт внешнего сервиса обогащения.
//
// Вызовы могут длиться от секунд до минут; порядок завершения
// конкурентных вызовов не гарантируется.
type Service interface {
	// Enrich запрашивает поля fields для lead и возвращает полученные значения.
	Enrich(ctx context.Context, lead Lead, fields []Field) (map[string]any, error)

	// FindEmail ищет email для lead.
	FindEmail(ctx context.Context, lead Lead, mode string) (map[string]any, error)
}
