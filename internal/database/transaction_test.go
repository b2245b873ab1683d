package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertRecord(t *testing.T, tx *Tx, participant string) {
	t.Helper()
	_, err := tx.Bun().ExecContext(context.Background(),
		"INSERT INTO rating_records (group_id, participant_id) VALUES (?, ?)",
		"G1", participant,
	)
	require.NoError(t, err)
}

func countRecords(t *testing.T, pool *Pool) int {
	t.Helper()
	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	var n int
	require.NoError(t, conn.Conn().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM rating_records").Scan(&n))
	return n
}

func TestTx_Commit(t *testing.T) {
	pool, teardown := newTestPool(t, PoolConfig{MinSize: 1, MaxSize: 2})
	defer teardown()

	tx, err := Begin(context.Background(), pool)
	require.NoError(t, err)
	insertRecord(t, tx, "U1")

	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone, "second commit must fail")
	assert.ErrorIs(t, tx.Rollback(), ErrTxDone, "rollback after commit must fail")
	require.NoError(t, tx.Close())

	assert.Equal(t, 1, countRecords(t, pool))
	assert.Equal(t, int32(0), pool.Stat().Acquired)
}

func TestTx_Rollback(t *testing.T) {
	pool, teardown := newTestPool(t, PoolConfig{MinSize: 1, MaxSize: 2})
	defer teardown()

	tx, err := Begin(context.Background(), pool)
	require.NoError(t, err)
	insertRecord(t, tx, "U1")

	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "rolling back twice is safe")
	assert.ErrorIs(t, tx.Commit(), ErrTxDone, "commit after rollback must fail")
	require.NoError(t, tx.Close())

	assert.Equal(t, 0, countRecords(t, pool))
}

func TestTx_CloseRollsBackImplicitly(t *testing.T) {
	pool, teardown := newTestPool(t, PoolConfig{MinSize: 1, MaxSize: 2})
	defer teardown()

	func() {
		tx, err := Begin(context.Background(), pool)
		require.NoError(t, err)
		defer tx.Close()
		insertRecord(t, tx, "U1")
	}()

	assert.Equal(t, 0, countRecords(t, pool))
	assert.Equal(t, int32(0), pool.Stat().Acquired)
}

func TestTx_CloseReleasesOnce(t *testing.T) {
	pool, teardown := newTestPool(t, PoolConfig{MinSize: 0, MaxSize: 1})
	defer teardown()

	tx, err := Begin(context.Background(), pool)
	require.NoError(t, err)
	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)

	stat := pool.Stat()
	assert.Equal(t, int32(0), stat.Acquired)
	assert.Equal(t, int32(1), stat.Idle)
}

func TestBegin_FailsWhenPoolExhausted(t *testing.T) {
	pool, teardown := newTestPool(t, PoolConfig{MinSize: 0, MaxSize: 1})
	defer teardown()

	held, err := Begin(context.Background(), pool)
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = Begin(ctx, pool)
	assert.ErrorIs(t, err, ErrUnavailable)
}
