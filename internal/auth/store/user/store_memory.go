package user

import (
	"context"
	"fmt"
	"sync"

	"market/internal/auth/models"
	id "market/pkg/domain"
	"market/pkg/platform/sentinel"
)

// InMemoryUserStore keeps accounts in process memory, indexed by id and login.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.User
	byLogin map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		byID:    make(map[id.UserID]*models.User),
		byLogin: make(map[string]id.UserID),
	}
}

func (s *InMemoryUserStore) FindByLogin(_ context.Context, login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byLogin[login]
	if !ok {
		return nil, fmt.Errorf("user with login %q: %w", login, sentinel.ErrNotFound)
	}
	return cloneUser(s.byID[userID]), nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return cloneUser(u), nil
}

// CreateIfLoginAvailable stores u unless its login is taken, in which case it
// returns sentinel.ErrAlreadyUsed and leaves the store unchanged.
func (s *InMemoryUserStore) CreateIfLoginAvailable(_ context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byLogin[u.Login]; taken {
		return fmt.Errorf("login %q: %w", u.Login, sentinel.ErrAlreadyUsed)
	}
	s.byID[u.ID] = cloneUser(u)
	s.byLogin[u.Login] = u.ID
	return nil
}

// Len reports the number of stored accounts.
func (s *InMemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
