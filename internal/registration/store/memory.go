package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

// InMemoryStore keeps registrations in process memory. Records are cloned on
// the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	byID      map[id.RegistrationID]*models.Registration
	byNumber  map[string]id.RegistrationID
	sequences map[string]int // "<orgID>:<year>" -> last allocated
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[id.RegistrationID]*models.Registration),
		byNumber:  make(map[string]id.RegistrationID),
		sequences: make(map[string]int),
	}
}

func (s *InMemoryStore) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[reg.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byNumber[reg.RegistrationNumber]; exists {
		return sentinel.ErrConflict
	}

	s.byID[reg.ID] = reg.Clone()
	s.byNumber[reg.RegistrationNumber] = reg.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.byID[regID]
	if !ok || reg.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return reg.Clone(), nil
}

func (s *InMemoryStore) FindByAccessToken(_ context.Context, token string) (*models.Registration, error) {
	if token == "" {
		return nil, sentinel.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, reg := range s.byID {
		if reg.AccessToken == token && !reg.IsDeleted() {
			return reg.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[reg.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[reg.ID] = reg.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*models.Registration, int, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	var matched []*models.Registration
	for _, reg := range s.byID {
		if matches(reg, filter) {
			matched = append(matched, reg.Clone())
		}
	}
	s.mu.RUnlock()

	sortRegistrations(matched, filter)

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return nil, total, nil
	}
	end := min(start+filter.PerPage, total)
	return matched[start:end], total, nil
}

func (s *InMemoryStore) NextSequence(_ context.Context, orgID id.OrgID, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orgID.String() + ":" + strconv.Itoa(year)
	s.sequences[key]++
	return s.sequences[key], nil
}

func (s *InMemoryStore) ListStale(_ context.Context, cutoff time.Time, limit int) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*models.Registration
	for _, reg := range s.byID {
		if len(stale) >= limit {
			break
		}
		if reg.IsDeleted() || !reg.Status.IsEditable() {
			continue
		}
		if reg.UpdatedAt.After(cutoff) {
			continue
		}
		if reg.LastReminderSentAt != nil && reg.LastReminderSentAt.After(cutoff) {
			continue
		}
		stale = append(stale, reg.Clone())
	}
	return stale, nil
}

func matches(reg *models.Registration, f Filter) bool {
	if reg.IsDeleted() && !f.IncludeDeleted {
		return false
	}
	if !f.OrgID.IsZero() && reg.OrgID != f.OrgID {
		return false
	}
	if f.Status != "" && reg.Status != f.Status {
		return false
	}
	if !f.AssignedTo.IsZero() && (reg.AssignedTo == nil || *reg.AssignedTo != f.AssignedTo) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(reg.RegistrationNumber + " " + reg.FirstName + " " + reg.LastName + " " + reg.Email)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func sortRegistrations(regs []*models.Registration, f Filter) {
	sort.SliceStable(regs, func(i, j int) bool {
		var less bool
		switch f.SortBy {
		case "updated_at":
			less = regs[i].UpdatedAt.Before(regs[j].UpdatedAt)
		case "submitted_at":
			less = timeLess(regs[i].SubmittedAt, regs[j].SubmittedAt)
		case "registration_number":
			less = regs[i].RegistrationNumber < regs[j].RegistrationNumber
		default:
			less = regs[i].CreatedAt.Before(regs[j].CreatedAt)
		}
		if f.SortDesc {
			return !less
		}
		return less
	})
}

func timeLess(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}
