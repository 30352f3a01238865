// Package securitycontext holds the principal of the request currently being served.
//
// Each request gets its own Holder, installed by Middleware and reachable through
// the request context, so principals never leak between requests or goroutines.
package securitycontext

import (
	"context"
	"net/http"
	"sync"

	"market/internal/auth/models"
)

// Context is the per-request principal slot.
type Context interface {
	// Authentication returns the current principal; nil means cleared.
	Authentication() models.Authentication
	// SetAuthentication replaces the principal; nil clears it.
	SetAuthentication(a models.Authentication)
}

// Holder is the default Context implementation.
type Holder struct {
	mu   sync.RWMutex
	auth models.Authentication
}

// NewHolder returns a Holder seeded with the given principal, which may be nil.
func NewHolder(initial models.Authentication) *Holder {
	return &Holder{auth: initial}
}

func (h *Holder) Authentication() models.Authentication {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.auth
}

func (h *Holder) SetAuthentication(a models.Authentication) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.auth = a
}

type contextKey struct{}

func With(ctx context.Context, sc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// From returns the request's security context, or nil when none was installed.
func From(ctx context.Context) Context {
	sc, _ := ctx.Value(contextKey{}).(Context)
	return sc
}

// Middleware gives every request a fresh Holder seeded with the anonymous placeholder.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := NewHolder(models.Anonymous{})
		next.ServeHTTP(w, r.WithContext(With(r.Context(), holder)))
	})
}
