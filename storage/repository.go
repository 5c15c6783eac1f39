// Package storage holds the key-value snapshot stores the cart persists into.
// Every backend overwrites the whole value on Write; there is no delta or
// locking across processes, so concurrent writers resolve as last write wins.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the key has never been written.
var ErrNotFound = errors.New("snapshot not found")

type Repository interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
}
