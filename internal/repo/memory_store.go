package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/tableflow/internal/domain"
)

// MemoryStore — хранилище таблиц в памяти процесса.
// Хранит копии, поэтому вызывающий может менять переданные таблицы.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string]*domain.Table
	updated map[string]time.Time
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:  make(map[string]*domain.Table),
		updated: make(map[string]time.Time),
	}
}

// Load возвращает копию таблицы.
func (s *MemoryStore) Load(ctx context.Context, name string) (*domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t.Clone(), nil
}

// Save сохраняет копию таблицы.
func (s *MemoryStore) Save(ctx context.Context, name string, table *domain.Table) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = table.Clone()
	s.updated[name] = time.Now()
	return nil
}

// List возвращает имена сохранённых таблиц.
func (s *MemoryStore) List(ctx context.Context) ([]SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]SourceInfo, 0, len(s.tables))
	for name, t := range s.tables {
		sources = append(sources, SourceInfo{
			Name:      name,
			Size:      int64(t.Len()),
			UpdatedAt: s.updated[name],
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}
