// Package diagnostics keeps a mutable per-request set of key/value pairs that the log
// handler appends to every record emitted while the request is processed.
//
// A Map is created once per request by Middleware and lives in the request context.
// Stages that learn something about the caller (the authenticated login, the session)
// Put it and Remove it again when they return, so nothing leaks into the next request
// even when a Map is reused by a test or a worker.
package diagnostics

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	chimw "github.com/go-chi/chi/v5/middleware"

	"market/pkg/requestcontext"
)

const (
	KeyRequestID   = "request_id"
	KeyAuthUser    = "auth_user"
	KeyAuthSession = "auth_session"
	KeyClientIP    = "client_ip"
	KeyClientAgent = "client_agent"
)

// Map is safe for concurrent use; a nil *Map ignores writes and reads as empty.
type Map struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

func (m *Map) Put(key, value string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *Map) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Remove(keys ...string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
}

func (m *Map) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
}

// Attrs returns the current pairs as slog attributes sorted by key.
func (m *Map) Attrs() []slog.Attr {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, m.values[k]))
	}
	m.mu.RUnlock()
	return attrs
}

type ctxKey struct{}

// With attaches a fresh Map to ctx.
func With(ctx context.Context) (context.Context, *Map) {
	m := NewMap()
	return context.WithValue(ctx, ctxKey{}, m), m
}

// Attach carries an existing Map into ctx, for work that runs detached from the request.
func Attach(ctx context.Context, m *Map) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// From returns the Map attached to ctx, or nil.
func From(ctx context.Context) *Map {
	m, _ := ctx.Value(ctxKey{}).(*Map)
	return m
}

// Middleware gives each request its own Map seeded with the request id and clears it
// once the request has been served.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, m := With(r.Context())
		defer m.Clear()

		if reqID := chimw.GetReqID(ctx); reqID != "" {
			m.Put(KeyRequestID, reqID)
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
