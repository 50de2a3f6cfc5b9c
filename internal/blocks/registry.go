package blocks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/tableflow/internal/domain"
	"github.com/shaiso/tableflow/internal/remote"
	"github.com/shaiso/tableflow/internal/repo"
	"github.com/shaiso/tableflow/internal/worker"
)

// Deps — внешние зависимости стандартных блоков.
type Deps struct {
	Store      repo.TableStore    // источники и приёмники read/write
	Service    remote.Service     // сервис обогащения для enrich/find_email
	Dispatcher *worker.Dispatcher // пул удалённых вызовов
}

// Registry — реестр типов блоков.
//
// Позволяет регистрировать и получать реализации Block по типу.
// Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	blocks map[domain.BlockType]Block
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		blocks: make(map[domain.BlockType]Block),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными блоками.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()

	r.Register(NewReadBlock(deps.Store))
	r.Register(NewWriteBlock(deps.Store))
	r.Register(NewFilterBlock())
	r.Register(NewEnrichBlock(deps.Service, deps.Dispatcher))
	r.Register(NewFindEmailBlock(deps.Service, deps.Dispatcher))

	return r
}

// Register регистрирует блок в реестре.
// Если блок с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(block Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[block.Type()] = block
}

// Get возвращает блок по типу.
// Возвращает ErrBlockNotFound, если блок не найден.
func (r *Registry) Get(blockType domain.BlockType) (Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	block, exists := r.blocks[blockType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, blockType)
	}

	return block, nil
}

// Has проверяет, зарегистрирован ли блок.
func (r *Registry) Has(blockType domain.BlockType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.blocks[blockType]
	return exists
}

// Types возвращает список всех зарегистрированных типов блоков.
func (r *Registry) Types() []domain.BlockType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.BlockType, 0, len(r.blocks))
	for t := range r.blocks {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Schemas возвращает схемы всех блоков, отсортированные по типу.
func (r *Registry) Schemas() []Schema {
	types := r.Types()

	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(types))
	for _, t := range types {
		schemas = append(schemas, r.blocks[t].Schema())
	}
	return schemas
}

// ValidateSpec проверяет тип и конфигурацию блока графа.
func (r *Registry) ValidateSpec(spec domain.BlockSpec) error {
	block, err := r.Get(spec.Type)
	if err != nil {
		return err
	}
	if err := block.Validate(spec.Config); err != nil {
		return fmt.Errorf("block %s: %w", spec.ID, err)
	}
	return nil
}
