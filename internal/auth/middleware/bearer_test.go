package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market/internal/auth/models"
	"market/internal/auth/securitycontext"
	"market/internal/auth/token"
)

func TestOptionalBearer(t *testing.T) {
	jwtService := token.NewJWTService("key", "issuer", "audience")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var principal models.Authentication
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = securitycontext.From(r.Context()).Authentication()
		w.WriteHeader(http.StatusNoContent)
	})
	handler := securitycontext.Middleware(OptionalBearer(jwtService, nil, logger)(inner))

	t.Run("no header leaves the placeholder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, models.Anonymous{}, principal)
	})

	t.Run("valid token installs the principal", func(t *testing.T) {
		tok, err := jwtService.Issue("bob", "sess-bob", time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, models.IsAuthenticated(principal))
		assert.Equal(t, "bob", principal.Login())
		assert.Equal(t, "sess-bob", principal.SessionID())
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic YWxpY2U6cHc=")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
