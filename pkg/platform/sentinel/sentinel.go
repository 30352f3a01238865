package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors.
//
//   - ErrNotFound: no record for the key (login, legal form id, market user id)
//   - ErrAlreadyUsed: a unique key (login) is taken by another record
//   - ErrLocked: a provisioning lock is held by another request
//   - ErrUnavailable: backing service cannot be reached
//
// Validation failures are not sentinels; use pkg/domain-errors for those.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
