package rating

import (
	"context"
	"sync"
	"time"
)

var (
	_ Store      = (*MockStore)(nil)
	_ UnitOfWork = (*MockUnitOfWork)(nil)
	_ Service    = (*MockService)(nil)
)

// MockStore is a mock implementation of Store for testing.
// Begin hands out a fresh MockUnitOfWork built by NewUnitOfWorkFunc, or an
// empty one that reports every lookup as missing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	BeginFunc          func(ctx context.Context) (UnitOfWork, error)
	NewUnitOfWorkFunc  func() *MockUnitOfWork
	RankingsFunc       func(ctx context.Context, groupID string, limit int) ([]RatingRecord, error)
	MatchesFunc        func(ctx context.Context, groupID string, limit int) ([]MatchRecord, error)
	ParticipantFunc    func(ctx context.Context, groupID, participantID string) (*RatingRecord, error)
	BeginCalls         int
	UnitsOfWork        []*MockUnitOfWork
	RankingsCallLimits []int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Begin(ctx context.Context) (UnitOfWork, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BeginCalls++
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	uow := &MockUnitOfWork{}
	if m.NewUnitOfWorkFunc != nil {
		uow = m.NewUnitOfWorkFunc()
	}
	m.UnitsOfWork = append(m.UnitsOfWork, uow)
	return uow, nil
}

func (m *MockStore) Rankings(ctx context.Context, groupID string, limit int) ([]RatingRecord, error) {
	m.mu.Lock()
	m.RankingsCallLimits = append(m.RankingsCallLimits, limit)
	m.mu.Unlock()
	if m.RankingsFunc != nil {
		return m.RankingsFunc(ctx, groupID, limit)
	}
	return nil, nil
}

func (m *MockStore) Matches(ctx context.Context, groupID string, limit int) ([]MatchRecord, error) {
	if m.MatchesFunc != nil {
		return m.MatchesFunc(ctx, groupID, limit)
	}
	return nil, nil
}

func (m *MockStore) Participant(ctx context.Context, groupID, participantID string) (*RatingRecord, error) {
	if m.ParticipantFunc != nil {
		return m.ParticipantFunc(ctx, groupID, participantID)
	}
	return nil, ErrNotFound
}

// MockUnitOfWork is a mock implementation of UnitOfWork.
type MockUnitOfWork struct {
	MatchByIdempotencyKeyFunc func(ctx context.Context, key string) (*MatchRecord, error)
	LatestMatchFunc           func(ctx context.Context, groupID string) (*MatchRecord, error)
	RatingRecordFunc          func(ctx context.Context, groupID, participantID string) (*RatingRecord, error)
	InsertRatingRecordFunc    func(ctx context.Context, rec *RatingRecord) (bool, error)
	UpdateRatingRecordFunc    func(ctx context.Context, rec *RatingRecord, expectedVersion int64) error
	InsertMatchFunc           func(ctx context.Context, m *MatchRecord) error
	MarkUndoneFunc            func(ctx context.Context, matchID int64, by string, at time.Time) error
	InsertHistoryFunc         func(ctx context.Context, entries ...HistoryEntry) error
	CommitFunc                func() error

	UpdatedRecords []RatingRecord
	InsertedMatch  *MatchRecord
	History        []HistoryEntry
	Committed      bool
	Closed         bool
}

func (u *MockUnitOfWork) MatchByIdempotencyKey(ctx context.Context, key string) (*MatchRecord, error) {
	if u.MatchByIdempotencyKeyFunc != nil {
		return u.MatchByIdempotencyKeyFunc(ctx, key)
	}
	return nil, ErrNotFound
}

func (u *MockUnitOfWork) LatestMatch(ctx context.Context, groupID string) (*MatchRecord, error) {
	if u.LatestMatchFunc != nil {
		return u.LatestMatchFunc(ctx, groupID)
	}
	return nil, ErrNotFound
}

func (u *MockUnitOfWork) RatingRecord(ctx context.Context, groupID, participantID string) (*RatingRecord, error) {
	if u.RatingRecordFunc != nil {
		return u.RatingRecordFunc(ctx, groupID, participantID)
	}
	return nil, ErrNotFound
}

func (u *MockUnitOfWork) InsertRatingRecord(ctx context.Context, rec *RatingRecord) (bool, error) {
	if u.InsertRatingRecordFunc != nil {
		return u.InsertRatingRecordFunc(ctx, rec)
	}
	return true, nil
}

func (u *MockUnitOfWork) UpdateRatingRecord(ctx context.Context, rec *RatingRecord, expectedVersion int64) error {
	if u.UpdateRatingRecordFunc != nil {
		if err := u.UpdateRatingRecordFunc(ctx, rec, expectedVersion); err != nil {
			return err
		}
	}
	rec.Version = expectedVersion + 1
	u.UpdatedRecords = append(u.UpdatedRecords, *rec)
	return nil
}

func (u *MockUnitOfWork) InsertMatch(ctx context.Context, m *MatchRecord) error {
	if u.InsertMatchFunc != nil {
		if err := u.InsertMatchFunc(ctx, m); err != nil {
			return err
		}
	}
	if m.ID == 0 {
		m.ID = 1
	}
	u.InsertedMatch = m
	return nil
}

func (u *MockUnitOfWork) MarkUndone(ctx context.Context, matchID int64, by string, at time.Time) error {
	if u.MarkUndoneFunc != nil {
		return u.MarkUndoneFunc(ctx, matchID, by, at)
	}
	return nil
}

func (u *MockUnitOfWork) InsertHistory(ctx context.Context, entries ...HistoryEntry) error {
	if u.InsertHistoryFunc != nil {
		if err := u.InsertHistoryFunc(ctx, entries...); err != nil {
			return err
		}
	}
	u.History = append(u.History, entries...)
	return nil
}

func (u *MockUnitOfWork) Commit() error {
	if u.CommitFunc != nil {
		if err := u.CommitFunc(); err != nil {
			return err
		}
	}
	u.Committed = true
	return nil
}

func (u *MockUnitOfWork) Close() error {
	u.Closed = true
	return nil
}

// MockService is a mock implementation of Service for testing.
// It is safe for concurrent use.
type MockService struct {
	mu sync.Mutex

	RegisterFunc    func(ctx context.Context, outcome Outcome) (*MatchResult, error)
	EnrollFunc      func(ctx context.Context, groupID, participantID string) (*RatingRecord, bool, error)
	UndoFunc        func(ctx context.Context, groupID, requestedBy string) (*MatchRecord, error)
	RankingsFunc    func(ctx context.Context, groupID string, limit int) ([]RatingRecord, error)
	MatchesFunc     func(ctx context.Context, groupID string, limit int) ([]MatchRecord, error)
	ParticipantFunc func(ctx context.Context, groupID, participantID string) (*RatingRecord, error)

	RegisterCalls []Outcome
	EnrollCalls   []struct{ GroupID, ParticipantID string }
	UndoCalls     []struct{ GroupID, RequestedBy string }
	RankingsCalls []struct {
		GroupID string
		Limit   int
	}
}

// NewMockService creates a new MockService.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) Register(ctx context.Context, outcome Outcome) (*MatchResult, error) {
	m.mu.Lock()
	m.RegisterCalls = append(m.RegisterCalls, outcome)
	m.mu.Unlock()
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, outcome)
	}
	return &MatchResult{Match: &MatchRecord{ID: 1, GroupID: outcome.GroupID}, Attempts: 1}, nil
}

func (m *MockService) Enroll(ctx context.Context, groupID, participantID string) (*RatingRecord, bool, error) {
	m.mu.Lock()
	m.EnrollCalls = append(m.EnrollCalls, struct{ GroupID, ParticipantID string }{groupID, participantID})
	m.mu.Unlock()
	if m.EnrollFunc != nil {
		return m.EnrollFunc(ctx, groupID, participantID)
	}
	return &RatingRecord{GroupID: groupID, ParticipantID: participantID}, true, nil
}

func (m *MockService) Undo(ctx context.Context, groupID, requestedBy string) (*MatchRecord, error) {
	m.mu.Lock()
	m.UndoCalls = append(m.UndoCalls, struct{ GroupID, RequestedBy string }{groupID, requestedBy})
	m.mu.Unlock()
	if m.UndoFunc != nil {
		return m.UndoFunc(ctx, groupID, requestedBy)
	}
	return nil, ErrNotFound
}

func (m *MockService) Rankings(ctx context.Context, groupID string, limit int) ([]RatingRecord, error) {
	m.mu.Lock()
	m.RankingsCalls = append(m.RankingsCalls, struct {
		GroupID string
		Limit   int
	}{groupID, limit})
	m.mu.Unlock()
	if m.RankingsFunc != nil {
		return m.RankingsFunc(ctx, groupID, limit)
	}
	return nil, nil
}

func (m *MockService) Matches(ctx context.Context, groupID string, limit int) ([]MatchRecord, error) {
	if m.MatchesFunc != nil {
		return m.MatchesFunc(ctx, groupID, limit)
	}
	return nil, nil
}

func (m *MockService) Participant(ctx context.Context, groupID, participantID string) (*RatingRecord, error) {
	if m.ParticipantFunc != nil {
		return m.ParticipantFunc(ctx, groupID, participantID)
	}
	return nil, ErrNotFound
}
