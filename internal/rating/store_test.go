package rating

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/elo"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// setupTestDB creates a migrated SQLite ladder with a small pool.
func setupTestDB(t *testing.T) (*bun.DB, Store, func()) {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "ladder.db")
	db, dbTeardown, err := database.InitDB(ctx, database.Options{Driver: database.DriverSQLite, DSN: path})
	require.NoError(t, err)

	pool, err := database.NewPool(ctx, db, database.PoolConfig{MinSize: 1, MaxSize: 4})
	require.NoError(t, err)

	return db, New(pool), func() {
		pool.Close()
		dbTeardown()
	}
}

func setupRegistrar(t *testing.T, participants ...string) (*bun.DB, *Registrar, func()) {
	t.Helper()
	db, store, teardown := setupTestDB(t)
	r := NewRegistrar(store, elo.New(), fastRetry(20), metrics.NewMock(), Config{})
	for _, p := range participants {
		_, _, err := r.Enroll(context.Background(), "C1", p)
		require.NoError(t, err)
	}
	return db, r, teardown
}

func setRating(t *testing.T, store Store, participant string, rating int) {
	t.Helper()
	ctx := context.Background()
	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close()

	rec, err := uow.RatingRecord(ctx, "C1", participant)
	require.NoError(t, err)
	rec.CurrentRating = rating
	require.NoError(t, uow.UpdateRatingRecord(ctx, rec, rec.Version))
	require.NoError(t, uow.Commit())
}

func countRows(t *testing.T, db *bun.DB, model any) int {
	t.Helper()
	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestStore_RegisterEqualRatings(t *testing.T) {
	db, r, teardown := setupRegistrar(t, "alice", "bob")
	defer teardown()
	ctx := context.Background()
	setRating(t, r.store, "alice", 1200)
	setRating(t, r.store, "bob", 1200)

	res, err := r.Register(ctx, outcome("C1_100.1"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.NotZero(t, res.Match.ID)

	alice, err := r.Participant(ctx, "C1", "alice")
	require.NoError(t, err)
	bob, err := r.Participant(ctx, "C1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1216, alice.CurrentRating)
	assert.Equal(t, 1184, bob.CurrentRating)
	assert.Equal(t, 1, alice.MatchesWon)
	assert.Equal(t, 1, bob.MatchesLost)
	assert.Equal(t, int64(2), alice.Version)

	var history []HistoryEntry
	require.NoError(t, db.NewSelect().Model(&history).OrderExpr("id ASC").Scan(ctx))
	require.Len(t, history, 2)
	assert.Equal(t, res.Match.ID, history[0].MatchID)
	assert.Equal(t, "alice", history[0].ParticipantID)
	assert.Equal(t, 1200, history[0].RatingBefore)
	assert.Equal(t, 1216, history[0].RatingAfter)
	assert.Equal(t, 16, history[0].Delta)
	assert.Equal(t, -16, history[1].Delta)
}

func TestStore_SameKeyAppliesOnce(t *testing.T) {
	db, r, teardown := setupRegistrar(t, "alice", "bob")
	defer teardown()
	ctx := context.Background()

	first, err := r.Register(ctx, outcome("C1_200.1"))
	require.NoError(t, err)
	second, err := r.Register(ctx, outcome("C1_200.1"))
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Match.ID, second.Match.ID)
	assert.Equal(t, 1, countRows(t, db, (*MatchRecord)(nil)))
	assert.Equal(t, 2, countRows(t, db, (*HistoryEntry)(nil)))

	alice, err := r.Participant(ctx, "C1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.MatchesPlayed)
	assert.Equal(t, first.Match.RatingAAfter, alice.CurrentRating)
}

func TestStore_ConcurrentRegistrations(t *testing.T) {
	db, r, teardown := setupRegistrar(t, "alice", "bob")
	defer teardown()
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := outcome(fmt.Sprintf("C1_300.%d", i))
			if i%2 == 1 {
				o.ScoreA, o.ScoreB = 0, 2
			}
			_, err := r.Register(ctx, o)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	alice, err := r.Participant(ctx, "C1", "alice")
	require.NoError(t, err)
	bob, err := r.Participant(ctx, "C1", "bob")
	require.NoError(t, err)

	assert.Equal(t, n, alice.MatchesPlayed)
	assert.Equal(t, n, bob.MatchesPlayed)
	assert.Equal(t, int64(n), alice.Version)
	assert.Equal(t, alice.MatchesWon, bob.MatchesLost)
	assert.Equal(t, n, countRows(t, db, (*MatchRecord)(nil)))
	assert.Equal(t, 2*n, countRows(t, db, (*HistoryEntry)(nil)))

	// Replaying the history must land on the stored ratings.
	var history []HistoryEntry
	require.NoError(t, db.NewSelect().Model(&history).Where("participant_id = ?", "alice").Scan(ctx))
	sum := elo.DefaultRating
	for _, h := range history {
		assert.Equal(t, h.RatingAfter-h.RatingBefore, h.Delta)
		sum += h.Delta
	}
	assert.Equal(t, alice.CurrentRating, sum)
}

func TestStore_ConcurrentSameKey(t *testing.T) {
	db, r, teardown := setupRegistrar(t, "alice", "bob")
	defer teardown()
	ctx := context.Background()

	const n = 6
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Register(ctx, outcome("C1_400.1"))
			assert.NoError(t, err)
			if err == nil && res.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n-1, duplicates)
	assert.Equal(t, 1, countRows(t, db, (*MatchRecord)(nil)))
	alice, err := r.Participant(ctx, "C1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.MatchesPlayed)
}

func TestUnitOfWork_StaleVersionConflicts(t *testing.T) {
	_, r, teardown := setupRegistrar(t, "alice")
	defer teardown()
	ctx := context.Background()

	uow, err := r.store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close()

	rec, err := uow.RatingRecord(ctx, "C1", "alice")
	require.NoError(t, err)
	stale := rec.Version

	rec.CurrentRating = 1510
	require.NoError(t, uow.UpdateRatingRecord(ctx, rec, stale))
	assert.Equal(t, stale+1, rec.Version)

	rec.CurrentRating = 1520
	err = uow.UpdateRatingRecord(ctx, rec, stale)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUnitOfWork_InsertMatchDuplicateKey(t *testing.T) {
	_, r, teardown := setupRegistrar(t, "alice", "bob")
	defer teardown()
	ctx := context.Background()

	uow, err := r.store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close()

	m := &MatchRecord{GroupID: "C1", ParticipantA: "alice", ParticipantB: "bob", ScoreA: 1, IdempotencyKey: "C1_500.1"}
	require.NoError(t, uow.InsertMatch(ctx, m))
	assert.NotZero(t, m.ID)

	again := *m
	again.ID = 0
	assert.ErrorIs(t, uow.InsertMatch(ctx, &again), ErrDuplicate)
}

func TestStore_EnrollIsIdempotent(t *testing.T) {
	db, r, teardown := setupRegistrar(t)
	defer teardown()
	ctx := context.Background()

	rec, created, err := r.Enroll(ctx, "C1", "carol")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, elo.DefaultRating, rec.CurrentRating)

	_, created, err = r.Enroll(ctx, "C1", "carol")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, countRows(t, db, (*RatingRecord)(nil)))
}

func TestStore_UndoRestoresRatings(t *testing.T) {
	db, r, teardown := setupRegistrar(t, "alice", "bob")
	defer teardown()
	ctx := context.Background()

	_, err := r.Register(ctx, outcome("C1_600.1"))
	require.NoError(t, err)

	undone, err := r.Undo(ctx, "C1", "admin")
	require.NoError(t, err)
	assert.True(t, undone.IsUndone)

	alice, err := r.Participant(ctx, "C1", "alice")
	require.NoError(t, err)
	assert.Equal(t, elo.DefaultRating, alice.CurrentRating)
	assert.Equal(t, 0, alice.MatchesPlayed)
	assert.Equal(t, 0, alice.MatchesWon)
	assert.Equal(t, int64(2), alice.Version)

	var history []HistoryEntry
	require.NoError(t, db.NewSelect().Model(&history).Where("match_id = ?", undone.ID).OrderExpr("id ASC").Scan(ctx))
	require.Len(t, history, 2, "one history row per participant per match")
	assert.Equal(t, undone.DeltaA(), history[0].Delta)
	assert.Equal(t, undone.RatingAAfter-undone.RatingABefore, history[0].RatingAfter-history[0].RatingBefore)
	assert.Equal(t, undone.DeltaB(), history[1].Delta)

	matches, err := r.Matches(ctx, "C1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].IsUndone)
	require.NotNil(t, matches[0].UndoneBy)
	assert.Equal(t, "admin", *matches[0].UndoneBy)

	_, err = r.Undo(ctx, "C1", "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Rankings(t *testing.T) {
	_, r, teardown := setupRegistrar(t, "alice", "bob", "carol", "dave")
	defer teardown()
	ctx := context.Background()

	_, err := r.Register(ctx, Outcome{GroupID: "C1", ParticipantA: "carol", ParticipantB: "dave", ScoreA: 2, IdempotencyKey: "C1_700.1"})
	require.NoError(t, err)
	_, err = r.Register(ctx, Outcome{GroupID: "C1", ParticipantA: "carol", ParticipantB: "bob", ScoreA: 2, IdempotencyKey: "C1_700.2"})
	require.NoError(t, err)

	top, err := r.Rankings(ctx, "C1", 0)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, "carol", top[0].ParticipantID)
	assert.Equal(t, "alice", top[1].ParticipantID)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].CurrentRating, top[i].CurrentRating)
	}

	two, err := r.Rankings(ctx, "C1", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	other, err := r.Rankings(ctx, "C2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ParticipantNotFound(t *testing.T) {
	_, r, teardown := setupRegistrar(t)
	defer teardown()

	_, err := r.Participant(context.Background(), "C1", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
