package record

import (
	"context"
	"fmt"
	"sync"

	"deckshot/internal/gateway/entity"
)

type DeckRecord struct {
	ID       entity.RecordID
	ImageURL entity.ArtifactReference
	Code     entity.DeckCode
}

// MemoryStore backs local runs and tests. Updates to unknown ids affect
// zero rows, matching the remote store.
type MemoryStore struct {
	mu      sync.Mutex
	decks   map[entity.RecordID]DeckRecord
	users   map[entity.UserID]entity.User
	updates []DeckRecord
	failErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decks: map[entity.RecordID]DeckRecord{},
		users: map[entity.UserID]entity.User{},
	}
}

// Seed inserts deck records that later updates can target.
func (s *MemoryStore) Seed(ids ...entity.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.decks[id] = DeckRecord{ID: id}
	}
}

func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemoryStore) UpdateDeckImage(_ context.Context, id entity.RecordID, ref entity.ArtifactReference, code entity.DeckCode) (QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", ErrRemote, s.failErr)
	}
	s.updates = append(s.updates, DeckRecord{ID: id, ImageURL: ref, Code: code})
	rec, ok := s.decks[id]
	if !ok {
		return QueryResult{Success: true}, nil
	}
	rec.ImageURL = ref
	if !code.IsZero() {
		rec.Code = code
	}
	s.decks[id] = rec
	return QueryResult{Success: true, RowsAffected: 1}, nil
}

func (s *MemoryStore) InsertUser(_ context.Context, u entity.User) (QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", ErrRemote, s.failErr)
	}
	if _, exists := s.users[u.ID]; exists {
		return QueryResult{}, fmt.Errorf("%w: UNIQUE constraint failed: users.uid", ErrRemote)
	}
	s.users[u.ID] = u
	return QueryResult{Success: true, RowsAffected: 1}, nil
}

func (s *MemoryStore) Deck(id entity.RecordID) (DeckRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.decks[id]
	return rec, ok
}

func (s *MemoryStore) User(id entity.UserID) (entity.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// Updates lists every UpdateDeckImage call in order.
func (s *MemoryStore) Updates() []DeckRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeckRecord(nil), s.updates...)
}
