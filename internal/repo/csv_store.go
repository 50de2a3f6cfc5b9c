package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaiso/tableflow/internal/domain"
)

// CSVStore — хранилище таблиц в каталоге с CSV-файлами.
// Имя таблицы — имя файла внутри каталога.
type CSVStore struct {
	dir string
}

// NewCSVStore создаёт CSVStore и при необходимости каталог dir.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

// Dir возвращает каталог хранилища.
func (s *CSVStore) Dir() string {
	return s.dir
}

// Load читает таблицу из файла.
func (s *CSVStore) Load(ctx context.Context, name string) (*domain.Table, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return table, nil
}

// Save записывает таблицу во временный файл и атомарно переименовывает его.
func (s *CSVStore) Save(ctx context.Context, name string, table *domain.Table) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, table); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrWriteFailed, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrWriteFailed, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrWriteFailed, name, err)
	}
	return nil
}

// List возвращает файлы каталога (без скрытых и временных).
func (s *CSVStore) List(ctx context.Context) ([]SourceInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	sources := make([]SourceInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, SourceInfo{
			Name:      e.Name(),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}
