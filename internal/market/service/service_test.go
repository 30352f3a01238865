package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks LegalFormStore,MarketUserStore,IdentityResolver,TxRunner,AuditPublisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authmodels "market/internal/auth/models"
	"market/internal/market/models"
	"market/internal/market/service/mocks"
	"market/internal/platform/metrics"
	id "market/pkg/domain"
	dErrors "market/pkg/domain-errors"
	"market/pkg/platform/audit"
	"market/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	legalForms  *mocks.MockLegalFormStore
	marketUsers *mocks.MockMarketUserStore
	identity    *mocks.MockIdentityResolver
	auditor     *mocks.MockAuditPublisher
	metrics     *metrics.Metrics
	logs        *bytes.Buffer
	service     *Service
	owner       *authmodels.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.legalForms = mocks.NewMockLegalFormStore(s.ctrl)
	s.marketUsers = mocks.NewMockMarketUserStore(s.ctrl)
	s.identity = mocks.NewMockIdentityResolver(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.logs = &bytes.Buffer{}
	s.service = New(s.legalForms, s.marketUsers, s.identity,
		WithAuditPublisher(s.auditor),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	s.owner = &authmodels.User{ID: id.UserID(uuid.New()), Login: "alice", CreatedAt: time.Now()}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func registration(form id.LegalFormID) *models.RegistrationRequest {
	return &models.RegistrationRequest{
		LegalForm:       form,
		IsTermsAccepted: true,
		Email:           "a@b.com",
		LegalAddress:    "1 Main St",
		LegalName:       "Acme Ltd",
		PersonalName:    "Alice",
	}
}

func (s *ServiceSuite) expectAudit(action audit.AuditEvent) {
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e audit.Event) {
		s.Equal(action, e.Action)
	})
}

func (s *ServiceSuite) TestRegisterKnownLegalForm() {
	ctx := context.Background()
	req := registration(42)
	req.PaymentDetails = []models.PaymentDetail{{Kind: "iban", Address: "HU00"}}

	s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(42)).Return(&models.LegalForm{ID: 42, Name: "Private individual"}, nil)
	s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(s.owner, nil)
	var saved *models.MarketUser
	s.marketUsers.EXPECT().Save(gomock.Any(), gomock.Any()).Times(1).
		DoAndReturn(func(_ context.Context, m *models.MarketUser) error {
			saved = m
			m.ID = 7
			return nil
		})
	s.expectAudit(audit.EventMarketUserRegistered)

	resp, err := s.service.Register(ctx, req)
	s.Require().NoError(err)

	s.Equal(id.MarketUserID(7), resp.ID)
	s.Equal(id.LegalFormID(42), resp.LegalForm)
	s.True(resp.IsTermsAccepted)
	s.Equal("a@b.com", resp.Email)
	s.Equal("1 Main St", resp.LegalAddress)
	s.Equal("Acme Ltd", resp.LegalName)
	s.Equal("Alice", resp.PersonalName)

	s.Require().NotNil(saved)
	s.Zero(saved.BalanceInCents)
	s.NotNil(saved.PaymentDetails)
	s.Empty(saved.PaymentDetails)
	s.Equal(s.owner.ID, saved.UserID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Registrations.WithLabelValues(metrics.OutcomeRegistered)))

	logs := s.logs.String()
	s.Contains(logs, "registration received")
	s.Contains(logs, "market user returned successfully")
	s.Contains(logs, "market_user_id=7")
}

func (s *ServiceSuite) TestRegisterUnknownLegalForm() {
	ctx := context.Background()

	s.Run("flat payload", func() {
		s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(999)).Return(nil, sentinel.ErrNotFound)
		s.expectAudit(audit.EventRegistrationRejected)

		_, err := s.service.Register(ctx, registration(999))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "no such legal form")
	})

	s.Run("nested payload is validated too", func() {
		req := &models.RegistrationRequest{Legal: &models.LegalSection{LegalForm: 999, LegalName: "Acme"}}
		s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(999)).Return(nil, sentinel.ErrNotFound)
		s.expectAudit(audit.EventRegistrationRejected)

		_, err := s.service.Register(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Registrations.WithLabelValues(metrics.OutcomeRejected)))
}

func (s *ServiceSuite) TestRegisterNestedPayload() {
	req := &models.RegistrationRequest{
		IsTermsAccepted: true,
		Legal:           &models.LegalSection{LegalForm: 42, Email: "a@b.com", LegalName: "Acme Ltd"},
		Payment:         &models.PaymentSection{PaymentRegime: "invoice"},
	}
	s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(42)).Return(&models.LegalForm{ID: 42}, nil)
	s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(s.owner, nil)
	s.marketUsers.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *models.MarketUser) error {
		s.Equal("Acme Ltd", m.LegalName)
		s.Equal("invoice", m.PaymentRegime)
		m.ID = 1
		return nil
	})
	s.expectAudit(audit.EventMarketUserRegistered)

	resp, err := s.service.Register(context.Background(), req)
	s.Require().NoError(err)
	s.Equal(id.LegalFormID(42), resp.LegalForm)
	s.Equal("a@b.com", resp.Email)
}

func (s *ServiceSuite) TestRegisterFailures() {
	ctx := context.Background()

	s.Run("nil request", func() {
		_, err := s.service.Register(ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("malformed email touches no store", func() {
		req := registration(42)
		req.Email = "nope"
		s.expectAudit(audit.EventRegistrationRejected)

		_, err := s.service.Register(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("legal form lookup fault", func() {
		s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(42)).Return(nil, errors.New("db down"))

		_, err := s.service.Register(ctx, registration(42))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("caller not authenticated", func() {
		s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(42)).Return(&models.LegalForm{ID: 42}, nil)
		s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))

		_, err := s.service.Register(ctx, registration(42))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("save fault keeps the cause", func() {
		cause := errors.New("write fail")
		s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(42)).Return(&models.LegalForm{ID: 42}, nil)
		s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(s.owner, nil)
		s.marketUsers.EXPECT().Save(gomock.Any(), gomock.Any()).Return(cause)

		_, err := s.service.Register(ctx, registration(42))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, cause)
	})
}

func (s *ServiceSuite) TestRegisterRunsInTransaction() {
	tx := mocks.NewMockTxRunner(s.ctrl)
	svc := New(s.legalForms, s.marketUsers, s.identity, WithTxRunner(tx))

	tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
	s.legalForms.EXPECT().FindByID(gomock.Any(), id.LegalFormID(42)).Return(&models.LegalForm{ID: 42}, nil)
	s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(s.owner, nil)
	s.marketUsers.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *models.MarketUser) error {
		m.ID = 3
		return nil
	})

	resp, err := svc.Register(context.Background(), registration(42))
	s.Require().NoError(err)
	s.Equal(id.MarketUserID(3), resp.ID)
}

func (s *ServiceSuite) TestListMine() {
	ctx := context.Background()

	s.Run("lists the caller's records", func() {
		s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(s.owner, nil)
		s.marketUsers.EXPECT().ListByUser(gomock.Any(), s.owner.ID).Return([]*models.MarketUser{{ID: 1, UserID: s.owner.ID}}, nil)

		list, err := s.service.ListMine(ctx)
		s.Require().NoError(err)
		s.Len(list, 1)
	})

	s.Run("store fault", func() {
		s.identity.EXPECT().AuthenticatedUser(gomock.Any()).Return(s.owner, nil)
		s.marketUsers.EXPECT().ListByUser(gomock.Any(), s.owner.ID).Return(nil, errors.New("db down"))

		_, err := s.service.ListMine(ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestListLegalForms() {
	s.legalForms.EXPECT().List(gomock.Any()).Return([]*models.LegalForm{{ID: 1}, {ID: 42}}, nil)

	forms, err := s.service.ListLegalForms(context.Background())
	s.Require().NoError(err)
	s.Len(forms, 2)
	s.False(strings.Contains(s.logs.String(), "registration received"))
}
