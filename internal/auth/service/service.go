package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"market/internal/auth/models"
	"market/internal/auth/securitycontext"
	"market/internal/platform/metrics"
	id "market/pkg/domain"
	dErrors "market/pkg/domain-errors"
	"market/pkg/platform/audit"
	"market/pkg/platform/diagnostics"
	"market/pkg/platform/sentinel"
	"market/pkg/requestcontext"
)

var tracer = otel.Tracer("market/internal/auth/service")

// provisionTimeout bounds one shared first-contact provisioning, lock wait included.
const provisionTimeout = 10 * time.Second

type UserStore interface {
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	CreateIfLoginAvailable(ctx context.Context, user *models.User) error
}

// Locker serializes provisioning of one login across service instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(ctx context.Context) error, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service resolves logins to accounts, creating the account on first contact.
type Service struct {
	users          UserStore
	locker         Locker
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	inflight       singleflight.Group
	newUserID      func() id.UserID
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLocker adds a cross-instance lock around first-contact provisioning.
func WithLocker(locker Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(users UserStore, opts ...Option) *Service {
	s := &Service{
		users:     users,
		logger:    slog.Default(),
		newUserID: func() id.UserID { return id.UserID(uuid.New()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the account for login, provisioning it when none exists.
// Concurrent first contacts of one login end with exactly one account.
func (s *Service) Resolve(ctx context.Context, login string) (*models.User, error) {
	if strings.TrimSpace(login) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "login is required")
	}

	ctx, span := tracer.Start(ctx, "auth.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("auth.login", login))

	user, err := s.users.FindByLogin(ctx, login)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	// Callers that join an in-flight provisioning share its result, so the shared
	// call runs on its own bounded context rather than the first caller's.
	v, err, _ := s.inflight.Do(login, func() (any, error) {
		fctx, cancel := flightContext(ctx)
		defer cancel()
		return s.provision(fctx, login)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provisioning failed")
		return nil, err
	}
	return v.(*models.User), nil
}

// flightContext keeps the request id, request time, diagnostics and trace span of
// ctx. Cancellation and any open transaction of the caller are left behind.
func flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	fctx := requestcontext.WithTime(context.Background(), requestcontext.Now(ctx))
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		fctx = requestcontext.WithRequestID(fctx, reqID)
	}
	if diag := diagnostics.From(ctx); diag != nil {
		fctx = diagnostics.Attach(fctx, diag)
	}
	fctx = trace.ContextWithSpan(fctx, trace.SpanFromContext(ctx))
	return context.WithTimeout(fctx, provisionTimeout)
}

func (s *Service) provision(ctx context.Context, login string) (*models.User, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, login)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire provisioning lock")
		}
		defer func() {
			if err := release(ctx); err != nil {
				s.logger.WarnContext(ctx, "failed to release provisioning lock", "error", err, "login", login)
			}
		}()

		// Another instance may have provisioned the login while we waited.
		existing, err := s.users.FindByLogin(ctx, login)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
		}
	}

	user, err := models.NewUser(s.newUserID(), login, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid login")
	}

	if err := s.users.CreateIfLoginAvailable(ctx, user); err != nil {
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		// Lost the race to another writer; the winner's account is the answer.
		s.metrics.IncrementProvisionConflicts()
		winner, findErr := s.users.FindByLogin(ctx, login)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load provisioned user")
		}
		s.emit(ctx, audit.Event{
			Action:  audit.EventProvisionRaceResolved,
			UserID:  winner.ID,
			Subject: login,
		})
		return winner, nil
	}

	s.metrics.IncrementUsersProvisioned()
	s.logger.InfoContext(ctx, "user provisioned",
		"event", "user_provisioned",
		"user_id", user.ID.String(),
		"login", login,
	)
	s.emit(ctx, audit.Event{
		Action:  audit.EventUserProvisioned,
		UserID:  user.ID,
		Subject: login,
	})
	return user, nil
}

// AuthenticatedUser resolves the account of the principal in the request's
// security context.
func (s *Service) AuthenticatedUser(ctx context.Context) (*models.User, error) {
	sc := securitycontext.From(ctx)
	if sc == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no security context")
	}
	principal := sc.Authentication()
	if !models.IsAuthenticated(principal) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.Resolve(ctx, principal.Credentials())
}

// FindByID loads an already provisioned account.
func (s *Service) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.auditPublisher.Emit(ctx, event)
}
