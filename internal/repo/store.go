package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/tableflow/internal/domain"
)

// TableStore — хранилище именованных таблиц (источники для read, приёмники для write).
//
// Реализации: CSVStore (каталог с CSV-файлами), MemoryStore, TableRepo (PostgreSQL).
type TableStore interface {
	// Load загружает таблицу. Возвращает ErrNotFound, если её нет.
	Load(ctx context.Context, name string) (*domain.Table, error)

	// Save сохраняет таблицу, перезаписывая существующую.
	// Ошибки оборачивают ErrWriteFailed.
	Save(ctx context.Context, name string, table *domain.Table) error

	// List возвращает список сохранённых таблиц, отсортированный по имени.
	List(ctx context.Context) ([]SourceInfo, error)
}

// SourceInfo — метаданные сохранённой таблицы.
type SourceInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateName проверяет имя источника: это должно быть простое имя файла
// без каталогов.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return fmt.Errorf("%w: %s must not contain path separators", ErrInvalidName, name)
	}
	return nil
}
