package models

import (
	"strings"
	"time"

	id "market/pkg/domain"
	dErrors "market/pkg/domain-errors"
)

// User is the durable account behind a login.
//
// Invariants:
//   - Login is non-empty and unique across accounts
//   - ID and CreatedAt are immutable after construction
type User struct {
	ID        id.UserID `json:"id"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
}

const maxLoginLength = 255

// NewUser builds the account provisioned on first contact of a login.
func NewUser(userID id.UserID, login string, now time.Time) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id cannot be nil")
	}
	if strings.TrimSpace(login) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "login cannot be empty")
	}
	if len(login) > maxLoginLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "login must be 255 characters or less")
	}
	return &User{ID: userID, Login: login, CreatedAt: now}, nil
}
