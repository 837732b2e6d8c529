package realtime

import (
	"sync"
)

// Store caches encoded feeds by service date in a thread-safe manner.
// Every Reset starts a new generation; feeds built from data read in an
// earlier generation are not stored.
type Store struct {
	mu    sync.RWMutex
	gen   uint64
	feeds map[string][]byte
}

// NewStore creates an empty feed store.
func NewStore() *Store {
	return &Store{feeds: make(map[string][]byte)}
}

// Get returns the encoded feed for a service date (YYYY-MM-DD).
func (s *Store) Get(date string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.feeds[date]
	return data, ok
}

// Generation returns the current generation. Read it before loading the
// trains a feed is built from.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Set stores an encoded feed built in generation gen. It reports false and
// stores nothing when a Reset happened since.
func (s *Store) Set(date string, data []byte, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.feeds[date] = data
	return true
}

// Reset drops every cached feed and starts a new generation. Called after a
// conversion run.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	clear(s.feeds)
}

// Len returns the number of cached feeds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feeds)
}
