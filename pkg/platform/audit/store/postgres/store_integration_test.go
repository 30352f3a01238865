//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"market/internal/platform/postgres"
	id "market/pkg/domain"
	"market/pkg/platform/audit"
	auditpostgres "market/pkg/platform/audit/store/postgres"
	"market/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *auditpostgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.pg.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	base := time.Now().UTC().Truncate(time.Millisecond)

	first := audit.Event{
		ID:        uuid.NewString(),
		Action:    audit.EventUserProvisioned,
		Timestamp: base,
		UserID:    userID,
		Subject:   "alice",
	}
	second := audit.Event{
		ID:        uuid.NewString(),
		Action:    audit.EventMarketUserRegistered,
		Timestamp: base.Add(time.Second),
		UserID:    userID,
		Subject:   "alice",
		Reference: "1",
	}
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first), "re-delivery is ignored")
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		ID:        uuid.NewString(),
		Action:    audit.EventAuthFailed,
		Timestamp: base,
		Reason:    "missing_login",
	}))

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(second.ID, events[0].ID)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal("1", events[0].Reference)
	s.Equal(first.ID, events[1].ID)
}

func (s *AuditStoreSuite) TestAppendJoinsTransaction() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	runner := postgres.NewTxRunner(s.pg.DB, 5*time.Second)
	boom := errors.New("boom")

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Action:    audit.EventMarketUserRegistered,
			Timestamp: time.Now(),
			UserID:    userID,
		}))
		return boom
	})
	s.ErrorIs(err, boom)

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Empty(events)
}
