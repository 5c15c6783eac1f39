package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	_ Repository = (*memoryRepository)(nil)
	_ Repository = (*redisRepository)(nil)
)

// Repository remembers which events were already handled so redelivered
// messages are processed once.
type Repository interface {
	// MarkProcessed records id and reports whether this is the first time.
	MarkProcessed(ctx context.Context, id string) (bool, error)
	// Release forgets id so a redelivery is handled again. Releasing an
	// unknown id is a no-op.
	Release(ctx context.Context, id string) error
}

type memoryRepository struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func NewMemoryRepository(ttl time.Duration) Repository {
	return &memoryRepository{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (r *memoryRepository) MarkProcessed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if at, ok := r.seen[id]; ok && (r.ttl <= 0 || now.Sub(at) < r.ttl) {
		return false, nil
	}
	r.seen[id] = now

	// 順便清掉過期的紀錄
	if r.ttl > 0 {
		for k, at := range r.seen {
			if now.Sub(at) >= r.ttl {
				delete(r.seen, k)
			}
		}
	}
	return true, nil
}

func (r *memoryRepository) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, id)
	return nil
}

type redisRepository struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisRepository(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) Repository {
	return &redisRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *redisRepository) MarkProcessed(ctx context.Context, id string) (bool, error) {
	key := fmt.Sprintf("event:%s", id)
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to mark event as processed", zap.String("event_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark event %s: %w", id, err)
	}
	return ok, nil
}

func (r *redisRepository) Release(ctx context.Context, id string) error {
	key := fmt.Sprintf("event:%s", id)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", id, err)
	}
	return nil
}
