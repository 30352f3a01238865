package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	authmodels "market/internal/auth/models"
	"market/internal/market/models"
	"market/internal/platform/metrics"
	id "market/pkg/domain"
	dErrors "market/pkg/domain-errors"
	"market/pkg/platform/audit"
	"market/pkg/platform/sentinel"
	"market/pkg/requestcontext"
)

var tracer = otel.Tracer("market/internal/market/service")

// ErrNoSuchLegalForm is the message of the validation error for an unknown legal form.
const ErrNoSuchLegalForm = "no such legal form"

type LegalFormStore interface {
	FindByID(ctx context.Context, formID id.LegalFormID) (*models.LegalForm, error)
	List(ctx context.Context) ([]*models.LegalForm, error)
}

type MarketUserStore interface {
	Save(ctx context.Context, m *models.MarketUser) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.MarketUser, error)
}

// IdentityResolver yields the account of the caller authenticated for this request.
type IdentityResolver interface {
	AuthenticatedUser(ctx context.Context) (*authmodels.User, error)
}

// TxRunner runs fn in one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service registers market users for authenticated callers.
type Service struct {
	legalForms     LegalFormStore
	marketUsers    MarketUserStore
	identity       IdentityResolver
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
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

// WithTxRunner makes the legal form check and the save one transaction.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(legalForms LegalFormStore, marketUsers MarketUserStore, identity IdentityResolver, opts ...Option) *Service {
	s := &Service{
		legalForms:  legalForms,
		marketUsers: marketUsers,
		identity:    identity,
		tx:          noTx{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates req, binds it to the caller and persists one market user
// with zero balance and no payment details. An unknown legal form fails with a
// validation error and persists nothing.
func (s *Service) Register(ctx context.Context, req *models.RegistrationRequest) (*models.RegistrationResponse, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "request is required")
	}
	ctx, span := tracer.Start(ctx, "market.Register")
	defer span.End()

	nested := req.Nested()
	req.Normalize()
	s.logger.InfoContext(ctx, "registration received",
		"event", "register",
		"nested_payload", nested,
		"payload", req,
	)
	span.SetAttributes(
		attribute.Int64("market.legal_form", int64(req.LegalForm)),
		attribute.Bool("market.nested_payload", nested),
	)

	if err := req.Validate(); err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	var stored *models.MarketUser
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		form, err := s.legalForms.FindByID(ctx, req.LegalForm)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, ErrNoSuchLegalForm)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up legal form")
		}

		owner, err := s.identity.AuthenticatedUser(ctx)
		if err != nil {
			return err
		}

		m := models.NewMarketUser(owner.ID, form.ID, req, requestcontext.Now(ctx))
		if err := s.marketUsers.Save(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save market user")
		}
		stored = m
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.reject(ctx, err)
		} else {
			s.metrics.IncrementRegistrations(metrics.OutcomeFailed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "registration failed")
		}
		return nil, err
	}

	s.metrics.IncrementRegistrations(metrics.OutcomeRegistered)
	s.emit(ctx, audit.Event{
		Action:    audit.EventMarketUserRegistered,
		UserID:    stored.UserID,
		Reference: stored.ID.String(),
	})
	s.logger.DebugContext(ctx, "market user returned successfully",
		"event", "register_stored",
		"market_user_id", stored.ID.String(),
	)
	return models.NewRegistrationResponse(req, stored.ID), nil
}

// ListMine returns the market users owned by the caller.
func (s *Service) ListMine(ctx context.Context) ([]*models.MarketUser, error) {
	owner, err := s.identity.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.marketUsers.ListByUser(ctx, owner.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list market users")
	}
	return list, nil
}

func (s *Service) ListLegalForms(ctx context.Context) ([]*models.LegalForm, error) {
	forms, err := s.legalForms.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list legal forms")
	}
	return forms, nil
}

func (s *Service) reject(ctx context.Context, err error) {
	s.metrics.IncrementRegistrations(metrics.OutcomeRejected)
	s.emit(ctx, audit.Event{
		Action: audit.EventRegistrationRejected,
		UserID: requestcontext.UserID(ctx),
		Reason: err.Error(),
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, event)
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
