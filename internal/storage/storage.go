package storage

import (
	"sort"
	"sync"

	"github.com/docrelay/markerd/internal/models"
)

// Store is the session record store. Records are passed by value so no
// caller can mutate shared state outside the store's lock; updates are
// whole-record replacements via Set.
type Store interface {
	Get(sessionID string) (models.Session, bool)
	Set(sessionID string, session models.Session)
	Delete(sessionID string)
	List() []string
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	sessions map[string]models.Session
	mu       sync.RWMutex
}

func New() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
	}
}

func (s *MemoryStore) Get(sessionID string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *MemoryStore) Set(sessionID string, session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
