package testutil

import (
	"net/http"

	"market/internal/auth/models"
	"market/internal/auth/securitycontext"
	"market/pkg/requestcontext"
)

// WithPrincipal installs an authenticated principal for login, the way the
// authentication stage does for a real request.
func WithPrincipal(req *http.Request, login, sessionID string) *http.Request {
	holder := securitycontext.NewHolder(models.NewAuthenticated(login, login, sessionID))
	ctx := securitycontext.With(req.Context(), holder)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	return req.WithContext(ctx)
}
