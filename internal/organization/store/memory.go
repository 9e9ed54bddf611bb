package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"enrolld/internal/organization/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

// InMemoryStore keeps organizations in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.OrgID]*models.Organization
	byName map[string]id.OrgID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.OrgID]*models.Organization),
		byName: make(map[string]id.OrgID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(org.Name)
	if _, exists := s.byName[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *org
	s.byID[org.ID] = &cp
	s.byName[key] = org.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, orgID id.OrgID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.byID[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[org.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *org
	s.byID[org.ID] = &cp
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]*models.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		cp := *org
		orgs = append(orgs, &cp)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
	return orgs, nil
}

// InMemoryTemplateStore keeps form templates in process memory.
type InMemoryTemplateStore struct {
	mu   sync.RWMutex
	byID map[id.TemplateID]*models.FormTemplate
}

func NewInMemoryTemplateStore() *InMemoryTemplateStore {
	return &InMemoryTemplateStore{byID: make(map[id.TemplateID]*models.FormTemplate)}
}

func (s *InMemoryTemplateStore) Create(_ context.Context, tpl *models.FormTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[tpl.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (s *InMemoryTemplateStore) FindByID(_ context.Context, templateID id.TemplateID) (*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.byID[templateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneTemplate(tpl), nil
}

func (s *InMemoryTemplateStore) ListByOrg(_ context.Context, orgID id.OrgID) ([]*models.FormTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tpls []*models.FormTemplate
	for _, tpl := range s.byID {
		if tpl.OrgID == orgID {
			tpls = append(tpls, cloneTemplate(tpl))
		}
	}
	sort.Slice(tpls, func(i, j int) bool { return tpls[i].Name < tpls[j].Name })
	return tpls, nil
}

func cloneTemplate(tpl *models.FormTemplate) *models.FormTemplate {
	cp := *tpl
	cp.Fields = make([]models.FieldDefinition, len(tpl.Fields))
	copy(cp.Fields, tpl.Fields)
	return &cp
}
