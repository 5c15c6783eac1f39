package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

var _ Cache = (*MemoryCache)(nil)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 32 << 20 // 32MB of encoded JSON
	defaultBufferItems = 64
)

// MemoryCache is an in-process cache bounded by the encoded size of its values.
type MemoryCache struct {
	store  *ristretto.Cache
	logger *zap.Logger
}

func NewMemoryCache(logger *zap.Logger) (*MemoryCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{store: store, logger: logger}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		c.store.Del(key)
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	if !c.store.SetWithTTL(key, data, int64(len(data)), ttl) {
		c.logger.Debug("Memory cache dropped set", zap.String("key", key))
		return nil
	}
	// ristretto 的寫入是非同步的，等待後才能立即讀到
	c.store.Wait()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.store.Del(key)
	return nil
}

func (c *MemoryCache) Close() {
	c.store.Close()
}
