package orchestrator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry — реестр run процесса: run ID → Controller.
//
// Читается конкурентно. Состояние каждого run пишет только его Controller,
// реестр лишь добавляет и удаляет записи.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Controller
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[uuid.UUID]*Controller),
	}
}

// Add добавляет run в реестр.
func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[c.ID()] = c
}

// Get возвращает Controller run. ErrRunNotFound, если run нет.
func (r *Registry) Get(id uuid.UUID) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return c, nil
}

// Delete удаляет run. Выполняющийся run удалить нельзя (ErrInvalidTransition).
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if c.isActive() {
		return fmt.Errorf("%w: run %s is still running", ErrInvalidTransition, id)
	}

	delete(r.runs, id)
	return nil
}

// List возвращает все run, от старых к новым.
func (r *Registry) List() []*Controller {
	r.mu.RLock()
	list := make([]*Controller, 0, len(r.runs))
	for _, c := range r.runs {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].state.CreatedAt.Before(list[j].state.CreatedAt)
	})
	return list
}

// EvictExpired удаляет run, для которых истёк ttl (см. Controller.expired).
// Возвращает ID удалённых run.
func (r *Registry) EvictExpired(ttl time.Duration, now time.Time) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []uuid.UUID
	for id, c := range r.runs {
		if c.expired(ttl, now) {
			delete(r.runs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len возвращает количество run в реестре.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
