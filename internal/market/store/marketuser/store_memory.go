package marketuser

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

// InMemoryStore assigns ids from a process-local sequence starting at 1.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID id.MarketUserID
	users  map[id.MarketUserID]*models.MarketUser
}

func New() *InMemoryStore {
	return &InMemoryStore{nextID: 1, users: make(map[id.MarketUserID]*models.MarketUser)}
}

// Save stores m, assigning m.ID when it is zero.
func (s *InMemoryStore) Save(_ context.Context, m *models.MarketUser) error {
	if m == nil {
		return fmt.Errorf("market user is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = s.nextID
		s.nextID++
	}
	s.users[m.ID] = clone(m)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, marketUserID id.MarketUserID) (*models.MarketUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.users[marketUserID]
	if !ok {
		return nil, fmt.Errorf("market user %d: %w", marketUserID, sentinel.ErrNotFound)
	}
	return clone(m), nil
}

// ListByUser returns the market users owned by userID, oldest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.MarketUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MarketUser
	for _, m := range s.users {
		if m.UserID == userID {
			out = append(out, clone(m))
		}
	}
	slices.SortFunc(out, func(a, b *models.MarketUser) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Count reports the number of stored market users.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func clone(m *models.MarketUser) *models.MarketUser {
	c := *m
	c.PaymentDetails = append([]models.PaymentDetail{}, m.PaymentDetails...)
	return &c
}
