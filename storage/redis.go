package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Repository = (*redisRepository)(nil)

type redisRepository struct {
	client redis.Cmdable
	prefix string
	logger *zap.Logger
}

// NewRedisRepository stores snapshots under prefix+key with no expiry.
func NewRedisRepository(client redis.Cmdable, prefix string, logger *zap.Logger) Repository {
	return &redisRepository{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (r *redisRepository) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to read snapshot", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return data, nil
}

func (r *redisRepository) Write(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		r.logger.Error("Failed to write snapshot", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}
	return nil
}
