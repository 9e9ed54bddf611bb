package session

import (
	"context"
	"sync"
	"time"

	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

type entry struct {
	regID     id.RegistrationID
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are removed
// lazily on Resolve.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	clock    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]entry),
		clock:    time.Now,
	}
}

// WithClock substitutes the time source. For tests.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) Issue(_ context.Context, token string, regID id.RegistrationID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = entry{regID: regID, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) Resolve(_ context.Context, token string) (id.RegistrationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[token]
	if !ok {
		return id.RegistrationID{}, sentinel.ErrNotFound
	}
	if s.clock().After(e.expiresAt) {
		delete(s.sessions, token)
		return id.RegistrationID{}, sentinel.ErrNotFound
	}
	return e.regID, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
