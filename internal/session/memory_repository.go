package session

import (
	"context"
	"sync"
)

// memoryRepository implements Repository using in-memory storage
type memoryRepository struct {
	mu      sync.RWMutex
	updates []Update
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Append(ctx context.Context, update Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates = append(r.updates, update)
	return nil
}

func (r *memoryRepository) List(ctx context.Context) ([]Update, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Update, len(r.updates))
	copy(out, r.updates)
	return out, nil
}
