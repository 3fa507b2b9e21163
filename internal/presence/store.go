package presence

import (
	"context"
	"sort"
	"sync"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
)

var ErrPresenceNotFound = apperrors.WithMessage(apperrors.ErrNotFound, "presence record not found")

// Mutation receives the current record (found is false when the user has none) and
// returns the record to store. Returning false leaves the store untouched.
type Mutation func(current models.PresenceState, found bool) (next models.PresenceState, write bool)

// Store holds exactly one presence record per user. Update must run the mutation
// atomically with respect to every other Update of the same user.
type Store interface {
	Get(ctx context.Context, userID int64) (models.PresenceState, error)
	List(ctx context.Context) ([]models.PresenceState, error)
	Update(ctx context.Context, userID int64, fn Mutation) (prev, next models.PresenceState, written bool, err error)
}

// MemoryStore is a process local Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int64]models.PresenceState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]models.PresenceState)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (models.PresenceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.records[userID]
	if !ok {
		return models.PresenceState{}, ErrPresenceNotFound
	}
	return st, nil
}

// List returns a copy of every record ordered by user id.
func (s *MemoryStore) List(_ context.Context) ([]models.PresenceState, error) {
	s.mu.Lock()
	out := make([]models.PresenceState, 0, len(s.records))
	for _, st := range s.records {
		out = append(out, st)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, userID int64, fn Mutation) (models.PresenceState, models.PresenceState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found := s.records[userID]
	next, write := fn(cur, found)
	if !write {
		return cur, cur, false, nil
	}
	next.UserID = userID
	s.records[userID] = next
	return cur, next, true, nil
}
