package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"enrolld/internal/staff/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

// InMemoryStore keeps staff accounts in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.StaffID]*models.StaffAccount
	byEmail map[string]id.StaffID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.StaffID]*models.StaffAccount),
		byEmail: make(map[string]id.StaffID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, account *models.StaffAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(account.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *account
	s.byID[account.ID] = &cp
	s.byEmail[key] = account.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, staffID id.StaffID) (*models.StaffAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[staffID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.StaffAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staffID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[staffID]
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, account *models.StaffAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[account.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *account
	s.byID[account.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListByOrg(_ context.Context, orgID id.OrgID) ([]*models.StaffAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.StaffAccount
	for _, account := range s.byID {
		if account.OrgID == orgID {
			cp := *account
			accounts = append(accounts, &cp)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts, nil
}
