package diagnostics

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market/pkg/requestcontext"
)

func TestMap(t *testing.T) {
	t.Run("put, remove and clear", func(t *testing.T) {
		m := NewMap()
		m.Put(KeyAuthUser, "alice")
		m.Put(KeyAuthSession, "s-1")

		v, ok := m.Get(KeyAuthUser)
		require.True(t, ok)
		assert.Equal(t, "alice", v)

		m.Remove(KeyAuthUser)
		_, ok = m.Get(KeyAuthUser)
		assert.False(t, ok)

		m.Clear()
		assert.Empty(t, m.Attrs())
	})

	t.Run("attrs are sorted by key", func(t *testing.T) {
		m := NewMap()
		m.Put("b", "2")
		m.Put("a", "1")
		assert.Equal(t, []slog.Attr{slog.String("a", "1"), slog.String("b", "2")}, m.Attrs())
	})

	t.Run("nil map is inert", func(t *testing.T) {
		var m *Map
		m.Put("k", "v")
		m.Remove("k")
		m.Clear()
		_, ok := m.Get("k")
		assert.False(t, ok)
		assert.Nil(t, m.Attrs())
		assert.Nil(t, From(context.Background()))
	})
}

func TestMiddleware(t *testing.T) {
	var seen *Map
	var requestID string
	handler := chimw.RequestID(Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = From(r.Context())
		requestID = requestcontext.RequestID(r.Context())
		v, ok := seen.Get(KeyRequestID)
		assert.True(t, ok)
		assert.Equal(t, requestID, v)
		seen.Put(KeyAuthUser, "alice")
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.NotEmpty(t, requestID)
	assert.Empty(t, seen.Attrs(), "map must be cleared after the request")
}
