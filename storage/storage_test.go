package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/storefront/driver"
)

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Read(ctx, "cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Write(ctx, "cart", []byte(`[{"id":1}]`)))
	got, err := repo.Read(ctx, "cart")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":1}]`, string(got))

	// 整個值覆寫
	require.NoError(t, repo.Write(ctx, "cart", []byte(`[]`)))
	got, err = repo.Read(ctx, "cart")
	require.NoError(t, err)
	require.Equal(t, "[]", string(got))

	_, err = repo.Read(ctx, "other")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestMemoryRepository_CopiesValues(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	value := []byte(`[]`)
	require.NoError(t, repo.Write(ctx, "cart", value))
	value[0] = 'x'

	got, err := repo.Read(ctx, "cart")
	require.NoError(t, err)
	require.Equal(t, "[]", string(got))
}

func TestFileRepository(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	exerciseRepository(t, repo)
}

func TestFileRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	first, err := NewFileRepository(dir, logger)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, "session/cart", []byte(`[{"id":"p1"}]`)))

	second, err := NewFileRepository(dir, logger)
	require.NoError(t, err)
	got, err := second.Read(ctx, "session/cart")
	require.NoError(t, err)
	require.Equal(t, `[{"id":"p1"}]`, string(got))
}

func TestRedisRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewRedisRepository(client, "storefront:", zaptest.NewLogger(t))
	exerciseRepository(t, repo)

	raw, err := mr.Get("storefront:cart")
	require.NoError(t, err)
	require.Equal(t, "[]", raw)
	require.Zero(t, mr.TTL("storefront:cart"))
}

func TestRedisRepository_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisRepository(client, "", zaptest.NewLogger(t))

	mr.Close()

	_, err := repo.Read(context.Background(), "cart")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, repo.Write(context.Background(), "cart", []byte(`[]`)))
}

func newMockPostgres(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := zaptest.NewLogger(t)
	tm := driver.NewTransactionManager(mock, logger)
	return mock, NewPostgresRepository(mock, tm, logger)
}

func TestPostgresRepository_Read(t *testing.T) {
	mock, repo := newMockPostgres(t)

	mock.ExpectQuery("SELECT value FROM storefront_snapshots").
		WithArgs("cart").
		WillReturnRows(mock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	got, err := repo.Read(context.Background(), "cart")
	require.NoError(t, err)
	require.Equal(t, "[]", string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReadMissing(t *testing.T) {
	mock, repo := newMockPostgres(t)

	mock.ExpectQuery("SELECT value FROM storefront_snapshots").
		WithArgs("cart").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Read(context.Background(), "cart")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Write(t *testing.T) {
	mock, repo := newMockPostgres(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO storefront_snapshots").
		WithArgs("cart", []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Write(context.Background(), "cart", []byte(`[]`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_WriteFailureRollsBack(t *testing.T) {
	mock, repo := newMockPostgres(t)
	boom := errors.New("disk full")

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO storefront_snapshots").
		WithArgs("cart", []byte(`[]`)).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.Write(context.Background(), "cart", []byte(`[]`))
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_WriteRetriesSerializationFailure(t *testing.T) {
	mock, repo := newMockPostgres(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO storefront_snapshots").
		WithArgs("cart", []byte(`[]`)).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO storefront_snapshots").
		WithArgs("cart", []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Write(context.Background(), "cart", []byte(`[]`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_EnsureSchema(t *testing.T) {
	mock, repo := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS storefront_snapshots").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
