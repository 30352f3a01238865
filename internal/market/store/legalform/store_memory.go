package legalform

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"market/internal/market/models"
	id "market/pkg/domain"
	"market/pkg/platform/sentinel"
)

// Defaults is the catalog seeded into an empty store at start-up.
var Defaults = []models.LegalForm{
	{ID: 1, Name: "Sole proprietorship", Description: "Individual trading in their own name"},
	{ID: 2, Name: "Limited liability company"},
	{ID: 3, Name: "Public limited company"},
	{ID: 4, Name: "Partnership"},
	{ID: 5, Name: "Non-profit organisation"},
	{ID: 42, Name: "Private individual", Description: "Natural person without a registered business"},
}

type InMemoryStore struct {
	mu    sync.RWMutex
	forms map[id.LegalFormID]models.LegalForm
}

func New() *InMemoryStore {
	return &InMemoryStore{forms: make(map[id.LegalFormID]models.LegalForm)}
}

func (s *InMemoryStore) FindByID(_ context.Context, formID id.LegalFormID) (*models.LegalForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forms[formID]
	if !ok {
		return nil, fmt.Errorf("legal form %d: %w", formID, sentinel.ErrNotFound)
	}
	return &f, nil
}

// Save inserts or replaces a catalog entry.
func (s *InMemoryStore) Save(_ context.Context, form *models.LegalForm) error {
	if form == nil {
		return fmt.Errorf("legal form is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = *form
	return nil
}

// List returns the catalog ordered by id.
func (s *InMemoryStore) List(_ context.Context) ([]*models.LegalForm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.LegalForm, 0, len(s.forms))
	for _, f := range s.forms {
		out = append(out, &f)
	}
	slices.SortFunc(out, func(a, b *models.LegalForm) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
