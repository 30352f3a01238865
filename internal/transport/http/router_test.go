package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	authmw "market/internal/auth/middleware"
	authservice "market/internal/auth/service"
	userstore "market/internal/auth/store/user"
	markethandler "market/internal/market/handler"
	"market/internal/market/models"
	marketservice "market/internal/market/service"
	"market/internal/market/store/legalform"
	"market/internal/market/store/marketuser"
	"market/internal/platform/metrics"
	dErrors "market/pkg/domain-errors"
	"market/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	router      http.Handler
	users       *userstore.InMemoryUserStore
	marketUsers *marketuser.InMemoryStore
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())

	s.users = userstore.New()
	s.marketUsers = marketuser.New()
	forms := legalform.New()
	s.Require().NoError(legalform.Seed(context.Background(), forms, legalform.Defaults))

	identity := authservice.New(s.users, authservice.WithLogger(logger), authservice.WithMetrics(m))
	market := marketservice.New(forms, s.marketUsers, identity,
		marketservice.WithLogger(logger),
		marketservice.WithMetrics(m),
	)
	authenticator := authmw.NewRemoteAuthenticator(identity, authmw.WithLogger(logger), authmw.WithMetrics(m))

	s.router = NewRouter(Config{
		Logger:  logger,
		Modules: []RouteRegistrar{markethandler.New(market, logger, authenticator.RequireRemoteUser(""))},
	})
}

func registration(legalForm int) map[string]any {
	return map[string]any{
		"legalForm":       legalForm,
		"isTermsAccepted": true,
		"email":           "alice@example.com",
		"legalAddress":    "1 Main St",
		"legalName":       "ACME",
		"personalName":    "Alice",
	}
}

func (s *RouterSuite) register(login string, body any) *http.Response {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/register", body)
	if login != "" {
		req.Header.Set(authmw.DefaultRemoteUserHeader, login)
	}
	return testutil.DoRequest(s.router, req).Result()
}

func (s *RouterSuite) TestRegistrationFlow() {
	s.Run("first registration provisions the account and stores a zero balance", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/register", registration(42))
		req.Header.Set(authmw.DefaultRemoteUserHeader, "alice")

		rr := testutil.DoRequest(s.router, req)

		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[models.RegistrationResponse](s.T(), rr)
		s.EqualValues(1, resp.ID)
		s.EqualValues(42, resp.LegalForm)
		s.Equal(1, s.users.Len())
		s.Equal(1, s.marketUsers.Count())
	})

	s.Run("the caller lists their own records", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/v1/market-users/me", nil)
		req.Header.Set(authmw.DefaultRemoteUserHeader, "alice")

		rr := testutil.DoRequest(s.router, req)

		s.Require().Equal(http.StatusOK, rr.Code)
		s.Contains(rr.Body.String(), `"balanceInCents":0`)
		s.Contains(rr.Body.String(), `"paymentDetails":[]`)
	})

	s.Run("a second registration reuses the account", func() {
		resp := s.register("alice", registration(1))
		defer resp.Body.Close()

		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal(1, s.users.Len())
		s.Equal(2, s.marketUsers.Count())
	})
}

func (s *RouterSuite) TestUnknownLegalForm() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/register", registration(999))
	req.Header.Set(authmw.DefaultRemoteUserHeader, "bob")

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	s.Contains(rr.Body.String(), "no such legal form")
	s.Equal(0, s.marketUsers.Count())
}

func (s *RouterSuite) TestMissingRemoteUser() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/register", registration(42)))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	s.Equal(0, s.users.Len())
	s.Equal(0, s.marketUsers.Count())
}

func (s *RouterSuite) TestLegalFormsArePublic() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/v1/legal-forms", nil))

	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "Private individual")
	s.Equal(0, s.users.Len())
}

func (s *RouterSuite) TestConcurrentFirstContactCreatesOneAccount() {
	const callers = 16
	var wg sync.WaitGroup
	codes := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.register("carol", registration(42))
			defer resp.Body.Close()
			codes[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	for _, code := range codes {
		s.Equal(http.StatusOK, code)
	}
	s.Equal(1, s.users.Len())
	s.Equal(callers, s.marketUsers.Count())
}

func TestHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("all checks pass", func(t *testing.T) {
		router := NewRouter(Config{
			Logger: logger,
			Health: []HealthCheck{{Name: "postgres", Check: func(context.Context) error { return nil }}},
		})

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, rr.Body.String())
	})

	t.Run("a failing check degrades the service", func(t *testing.T) {
		router := NewRouter(Config{
			Logger: logger,
			Health: []HealthCheck{
				{Name: "postgres", Check: func(context.Context) error { return nil }},
				{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
			},
		})

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"unavailable"}}`, rr.Body.String())
	})
}
