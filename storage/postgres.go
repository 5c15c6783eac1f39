package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/storefront/driver"
)

var _ Repository = (*PostgresRepository)(nil)

const (
	createSnapshotTableSQL = `CREATE TABLE IF NOT EXISTS storefront_snapshots (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	selectSnapshotSQL = `SELECT value FROM storefront_snapshots WHERE key = $1`

	upsertSnapshotSQL = `INSERT INTO storefront_snapshots (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, updated_at = NOW()`
)

type PostgresRepository struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewPostgresRepository(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		conn:   conn,
		tm:     tm,
		logger: logger,
	}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, createSnapshotTableSQL); err != nil {
		r.logger.Error("Failed to create snapshot table", zap.Error(err))
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.conn.QueryRow(ctx, selectSnapshotSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to read snapshot", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return value, nil
}

// Write upserts the snapshot at SERIALIZABLE so concurrent writers of one
// key are ordered; conflicts are retried by the transaction manager.
func (r *PostgresRepository) Write(ctx context.Context, key string, value []byte) error {
	err := r.tm.ExecuteSerializableTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertSnapshotSQL, key, value)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to write snapshot", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}
	return nil
}
