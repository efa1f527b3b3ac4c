package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/RezaEskandarii/userfire/types"
	"sort"
	"sync"
)

// Processor handles one envelope of the category it is registered for.
// A returned error is treated as a failed attempt.
type Processor func(ctx context.Context, name string, payload json.RawMessage) error

// Registry binds each category to exactly one Processor.
type Registry struct {
	processors map[types.Category]Processor
	mutex      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[types.Category]Processor),
	}
}

func (r *Registry) Register(category types.Category, p Processor) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category '%s'", category)
	}
	if p == nil {
		return fmt.Errorf("processor for '%s' is nil", category)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.processors[category]; exists {
		return fmt.Errorf("processor '%s' already registered", category)
	}
	r.processors[category] = p
	return nil
}

func (r *Registry) Exists(category types.Category) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.processors[category]
	return exists
}

func (r *Registry) Get(category types.Category) (Processor, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.processors[category]
	if !exists {
		return nil, fmt.Errorf("processor '%s' not found", category)
	}
	return p, nil
}

// Categories lists registered categories in a stable order.
func (r *Registry) Categories() []types.Category {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	categories := make([]types.Category, 0, len(r.processors))
	for c := range r.processors {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}
