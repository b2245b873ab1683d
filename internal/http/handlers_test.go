package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	healthErr error
	stat      database.PoolStat
}

func (f *fakePool) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakePool) Stat() database.PoolStat              { return f.stat }

func setupTestServer(t *testing.T) (*Server, *rating.MockService, *fakePool) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewService(reg).IncUndos()
	svc := rating.NewMockService()
	pool := &fakePool{}
	return NewServer(svc, pool, metrics.NewMetricsHandler(reg)), svc, pool
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheckHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s, _, _ := setupTestServer(t)
		rr := do(t, s, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK!", rr.Body.String())
	})

	t.Run("storage down", func(t *testing.T) {
		s, _, pool := setupTestServer(t)
		pool.healthErr = fmt.Errorf("%w: ping", database.ErrUnavailable)
		rr := do(t, s, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestMetricsHandler(t *testing.T) {
	s, _, _ := setupTestServer(t)
	rr := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ladder_matches_undone_total 1")
}

func TestPoolStatsHandler(t *testing.T) {
	s, _, pool := setupTestServer(t)
	pool.stat = database.PoolStat{Total: 4, Idle: 3, Acquired: 1, Max: 10, AcquireCount: 42}

	rr := do(t, s, http.MethodGet, "/pool")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got database.PoolStat
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, pool.stat, got)
}

func TestRankingsHandler(t *testing.T) {
	t.Run("returns ladder", func(t *testing.T) {
		s, svc, _ := setupTestServer(t)
		svc.RankingsFunc = func(ctx context.Context, groupID string, limit int) ([]rating.RatingRecord, error) {
			return []rating.RatingRecord{
				{GroupID: groupID, ParticipantID: "U1", CurrentRating: 1532},
				{GroupID: groupID, ParticipantID: "U2", CurrentRating: 1468},
			}, nil
		}

		rr := do(t, s, http.MethodGet, "/rankings?group=C1&limit=5")
		require.Equal(t, http.StatusOK, rr.Code)

		var got []rating.RatingRecord
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		require.Len(t, got, 2)
		assert.Equal(t, "U1", got[0].ParticipantID)
		assert.Equal(t, 1532, got[0].CurrentRating)

		require.Len(t, svc.RankingsCalls, 1)
		assert.Equal(t, "C1", svc.RankingsCalls[0].GroupID)
		assert.Equal(t, 5, svc.RankingsCalls[0].Limit)
	})

	t.Run("empty ladder encodes as empty array", func(t *testing.T) {
		s, _, _ := setupTestServer(t)
		rr := do(t, s, http.MethodGet, "/rankings?group=C1")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
	})

	testCases := []struct {
		name   string
		target string
	}{
		{"missing group", "/rankings"},
		{"non numeric limit", "/rankings?group=C1&limit=ten"},
		{"negative limit", "/rankings?group=C1&limit=-1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, svc, _ := setupTestServer(t)
			rr := do(t, s, http.MethodGet, tc.target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, svc.RankingsCalls)
		})
	}

	t.Run("storage unavailable", func(t *testing.T) {
		s, svc, _ := setupTestServer(t)
		svc.RankingsFunc = func(ctx context.Context, groupID string, limit int) ([]rating.RatingRecord, error) {
			return nil, fmt.Errorf("%w: acquire", rating.ErrUnavailable)
		}
		rr := do(t, s, http.MethodGet, "/rankings?group=C1")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestListMatchesHandler(t *testing.T) {
	s, svc, _ := setupTestServer(t)
	var gotLimit int
	svc.MatchesFunc = func(ctx context.Context, groupID string, limit int) ([]rating.MatchRecord, error) {
		gotLimit = limit
		return []rating.MatchRecord{{ID: 7, GroupID: groupID, ParticipantA: "U1", ParticipantB: "U2", ScoreA: 6, ScoreB: 3}}, nil
	}

	rr := do(t, s, http.MethodGet, "/matches?group=C1&limit=3")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, gotLimit)

	var got []rating.MatchRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)

	svc.MatchesFunc = func(ctx context.Context, groupID string, limit int) ([]rating.MatchRecord, error) {
		return nil, errors.New("boom")
	}
	rr = do(t, s, http.MethodGet, "/matches?group=C1")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestParticipantHandler(t *testing.T) {
	t.Run("get known participant", func(t *testing.T) {
		s, svc, _ := setupTestServer(t)
		svc.ParticipantFunc = func(ctx context.Context, groupID, participantID string) (*rating.RatingRecord, error) {
			return &rating.RatingRecord{GroupID: groupID, ParticipantID: participantID, CurrentRating: 1510}, nil
		}
		rr := do(t, s, http.MethodGet, "/participants?group=C1&id=U1")
		require.Equal(t, http.StatusOK, rr.Code)

		var got rating.RatingRecord
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, 1510, got.CurrentRating)
	})

	t.Run("get unknown participant", func(t *testing.T) {
		s, _, _ := setupTestServer(t)
		rr := do(t, s, http.MethodGet, "/participants?group=C1&id=U9")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		s, _, _ := setupTestServer(t)
		rr := do(t, s, http.MethodGet, "/participants?group=C1")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("enroll new participant", func(t *testing.T) {
		s, svc, _ := setupTestServer(t)
		rr := do(t, s, http.MethodPost, "/participants?group=C1&id=U3")
		assert.Equal(t, http.StatusCreated, rr.Code)
		require.Len(t, svc.EnrollCalls, 1)
		assert.Equal(t, "U3", svc.EnrollCalls[0].ParticipantID)
	})

	t.Run("enroll existing participant", func(t *testing.T) {
		s, svc, _ := setupTestServer(t)
		svc.EnrollFunc = func(ctx context.Context, groupID, participantID string) (*rating.RatingRecord, bool, error) {
			return &rating.RatingRecord{GroupID: groupID, ParticipantID: participantID}, false, nil
		}
		rr := do(t, s, http.MethodPost, "/participants?group=C1&id=U3")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("dry run does not enroll", func(t *testing.T) {
		s, svc, _ := setupTestServer(t)
		rr := do(t, s, http.MethodPost, "/participants?group=C1&id=U3&dry_run=true")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"dry_run":true,"created":true}`, rr.Body.String())
		assert.Empty(t, svc.EnrollCalls)
	})

	t.Run("method not allowed", func(t *testing.T) {
		s, _, _ := setupTestServer(t)
		rr := do(t, s, http.MethodDelete, "/participants?group=C1&id=U3")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		assert.Equal(t, "GET, POST", rr.Header().Get("Allow"))
	})
}
