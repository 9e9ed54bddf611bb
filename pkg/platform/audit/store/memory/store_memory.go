package memory

import (
	"context"
	"sync"

	id "enrolld/pkg/domain"
	audit "enrolld/pkg/platform/audit"
)

// InMemoryStore keeps audit events per registration. Used by unit tests and
// the database-less dev mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.RegistrationID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.RegistrationID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RegistrationID] = append(s.events[event.RegistrationID], event)
	return nil
}

// ListByRegistration returns the recorded events for one registration.
func (s *InMemoryStore) ListByRegistration(_ context.Context, regID id.RegistrationID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[regID]...), nil
}

// ListAll returns all recorded events.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.RegistrationID][]audit.Event)
}
