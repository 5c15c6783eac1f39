package storage

import (
	"context"
	"sync"
)

var _ Repository = (*memoryRepository)(nil)

type memoryRepository struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryRepository keeps snapshots for the life of the process only.
func NewMemoryRepository() Repository {
	return &memoryRepository{values: make(map[string][]byte)}
}

func (r *memoryRepository) Read(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (r *memoryRepository) Write(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = append([]byte(nil), value...)
	return nil
}
