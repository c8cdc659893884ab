package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"deckshot/internal/gateway/entity"
)

// MemoryStore keeps artifacts in process. It backs local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	data    map[string][]byte
	puts    int
	failErr error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://artifacts"
	}
	return &MemoryStore{
		baseURL: baseURL,
		data:    make(map[string][]byte),
	}
}

// FailWith makes later Puts return err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemoryStore) Put(_ context.Context, key string, content []byte, _ string) (entity.ArtifactReference, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	key = normalizeKey(key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failErr != nil {
		return "", s.failErr
	}
	s.data[key] = append([]byte(nil), content...)
	return entity.ArtifactReference(s.baseURL + "/" + key), nil
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[normalizeKey(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Puts counts upload attempts, failed ones included.
func (s *MemoryStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
