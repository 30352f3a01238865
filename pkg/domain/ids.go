// Package domain holds typed identifiers shared across modules.
//
// UUID-backed identifiers (users, sessions) are distinct named types so the compiler rejects
// passing one where the other is expected. Catalog and market-user identifiers are numeric
// because they are assigned by the store.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "market/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	SessionID uuid.UUID
)

// LegalFormID identifies a legal-form catalog entry.
type LegalFormID int64

// MarketUserID identifies a persisted market-user record.
type MarketUserID int64

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id LegalFormID) String() string  { return strconv.FormatInt(int64(id), 10) }
func (id MarketUserID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero reports whether the record has not been assigned an identifier yet.
func (id MarketUserID) IsZero() bool { return id == 0 }

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserID parses a user identifier at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

// ParseSessionID parses a session identifier at a trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session")
	return SessionID(u), err
}

// ParseLegalFormID parses a catalog identifier taken from a path or query value.
func ParseLegalFormID(s string) (LegalFormID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "legal form id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid legal form id")
	}
	return LegalFormID(n), nil
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}
