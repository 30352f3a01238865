package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"market/internal/auth/models"
	"market/internal/auth/securitycontext"
	"market/internal/platform/metrics"
	dErrors "market/pkg/domain-errors"
	"market/pkg/platform/audit"
	"market/pkg/platform/diagnostics"
	"market/pkg/platform/httputil"
	"market/pkg/requestcontext"
)

// Resolver maps a login to its account, creating it on first contact.
type Resolver interface {
	Resolve(ctx context.Context, login string) (*models.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// DefaultRemoteUserHeader carries the login asserted by the fronting proxy.
const DefaultRemoteUserHeader = "X-Remote-User"

// Failure reasons recorded on the authentication failure metric.
const (
	reasonMissingLogin  = "missing_login"
	reasonResolveFailed = "resolve_failed"
)

// RemoteAuthenticator establishes the principal of a request from the remote
// login and scopes it to the downstream handling of that request.
type RemoteAuthenticator struct {
	resolver       Resolver
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	newSessionID   func() string
}

type Option func(a *RemoteAuthenticator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *RemoteAuthenticator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *RemoteAuthenticator) {
		a.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(a *RemoteAuthenticator) {
		a.auditPublisher = publisher
	}
}

// WithSessionIDGenerator replaces the random session id source.
func WithSessionIDGenerator(gen func() string) Option {
	return func(a *RemoteAuthenticator) {
		a.newSessionID = gen
	}
}

func NewRemoteAuthenticator(resolver Resolver, opts ...Option) *RemoteAuthenticator {
	a := &RemoteAuthenticator{
		resolver:     resolver,
		logger:       slog.Default(),
		newSessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate installs the authenticated principal into sc, runs next and then
// clears sc and the auth diagnostics, whether next returns, fails or panics.
//
// The effective login is remoteLogin unless sc already holds a real principal,
// in which case that principal's login wins. The installed principal's
// credentials are the login itself.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, sc securitycontext.Context, remoteLogin string, next func(ctx context.Context) error) error {
	if sc == nil {
		holder := securitycontext.NewHolder(nil)
		sc = holder
		ctx = securitycontext.With(ctx, holder)
	}
	diag := diagnostics.From(ctx)
	defer func() {
		sc.SetAuthentication(nil)
		diag.Remove(diagnostics.KeyAuthUser, diagnostics.KeyAuthSession)
	}()

	start := time.Now()
	current := sc.Authentication()
	a.logger.DebugContext(ctx, "authenticating",
		"event", "authenticating",
		"principal", models.Describe(current),
	)

	login := remoteLogin
	sessionID := ""
	if models.IsAuthenticated(current) {
		login = current.Login()
		sessionID = current.SessionID()
	}
	if strings.TrimSpace(login) == "" {
		a.fail(ctx, reasonMissingLogin, "")
		return dErrors.New(dErrors.CodeUnauthorized, "remote user required")
	}

	a.logger.InfoContext(ctx, "login resolved",
		"event", "login",
		"login", login,
	)

	user, err := a.resolver.Resolve(ctx, login)
	if err != nil {
		a.fail(ctx, reasonResolveFailed, login)
		return err
	}

	if sessionID == "" {
		sessionID = a.newSessionID()
	}
	sc.SetAuthentication(models.NewAuthenticated(login, login, sessionID))
	diag.Put(diagnostics.KeyAuthUser, login)
	diag.Put(diagnostics.KeyAuthSession, sessionID)

	ctx = requestcontext.WithUserID(ctx, user.ID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	a.metrics.ObserveAuthentication(start)

	return next(ctx)
}

func (a *RemoteAuthenticator) fail(ctx context.Context, reason, login string) {
	a.metrics.IncrementAuthenticationFailures(reason)
	a.logger.WarnContext(ctx, "authentication failed",
		"event", "auth_failed",
		"reason", reason,
		"login", login,
	)
	if a.auditPublisher != nil {
		a.auditPublisher.Emit(ctx, audit.Event{
			Action:  audit.EventAuthFailed,
			Subject: login,
			Reason:  reason,
		})
	}
}

// RequireRemoteUser authenticates every request from the given header and
// answers with the error envelope when no principal can be established.
func (a *RemoteAuthenticator) RequireRemoteUser(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultRemoteUserHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			err := a.Authenticate(ctx, securitycontext.From(ctx), r.Header.Get(header), func(ctx context.Context) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				httputil.WriteError(w, err)
			}
		})
	}
}
