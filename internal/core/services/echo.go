package services

import (
	"sync"
	"time"
)

// EchoTTL is how long a locally-pushed completion ID is remembered.
const EchoTTL = 5 * time.Second

// echoSet expires entries lazily on access, no timer per entry.
type echoSet struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

func newEchoSet(ttl time.Duration) *echoSet {
	return &echoSet{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (s *echoSet) Mark(id string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.entries[id] = s.now().Add(s.ttl)
}

func (s *echoSet) Contains(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	_, ok := s.entries[id]
	return ok
}

func (s *echoSet) sweep() {
	now := s.now()
	for id, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, id)
		}
	}
}
