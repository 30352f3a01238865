package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"market/internal/auth/models"
	"market/internal/auth/securitycontext"
	"market/internal/auth/token"
	"market/internal/platform/metrics"
	"market/pkg/platform/httputil"
)

// TokenValidator validates bearer tokens issued for an already authenticated principal.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

const bearerPrefix = "Bearer "

// OptionalBearer installs the principal carried by a valid bearer token into the
// security context. Requests without an Authorization header pass through
// untouched; a malformed or invalid token is rejected.
func OptionalBearer(validator TokenValidator, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			raw, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				m.IncrementAuthenticationFailures("malformed_bearer")
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"event", "auth_failed",
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: "Invalid authorization header",
				})
				return
			}

			claims, err := validator.Validate(raw)
			if err != nil {
				m.IncrementAuthenticationFailures("invalid_bearer")
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"event", "auth_failed",
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			if sc := securitycontext.From(ctx); sc != nil {
				sc.SetAuthentication(models.NewAuthenticated(claims.Login(), claims.Login(), claims.SessionID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
