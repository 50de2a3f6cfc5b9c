package repo

import "errors"

// Общие ошибки хранилищ таблиц.
var (
	// ErrNotFound — таблица с таким именем не найдена.
	ErrNotFound = errors.New("not found")

	// ErrWriteFailed — не удалось сохранить таблицу.
	ErrWriteFailed = errors.New("write failed")

	// ErrInvalidName — имя источника недопустимо.
	ErrInvalidName = errors.New("invalid source name")

	// ErrInvalidData — данные источника не являются корректной таблицей.
	ErrInvalidData = errors.New("invalid table data")
)
