package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "tx.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_, err = sqlDB.Exec("CREATE TABLE items (name TEXT)")
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func countItems(t *testing.T, db *DB) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func TestWithTransaction_Commit(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		_, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, "INSERT INTO items VALUES ('a')")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, "INSERT INTO items VALUES ('a')")
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countItems(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, TxFromContext(outer), TxFromContext(inner))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestExecutorFor_NoTx(t *testing.T) {
	db := newTestDB(t)
	assert.Nil(t, TxFromContext(context.Background()))
	assert.Equal(t, Executor(db.DB), ExecutorFor(context.Background(), db.DB))
}
