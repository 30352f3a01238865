//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "market/pkg/domain"
	audit "market/pkg/platform/audit"
	"market/pkg/platform/audit/store/kafka"
	"market/pkg/testutil/containers"
)

type KafkaStoreSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaStoreSuite))
}

func (s *KafkaStoreSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaStoreSuite) TestAppendPublishesEvent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "audit-" + uuid.NewString()
	store, err := kafka.New(s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer store.Close()
	s.Require().NoError(store.EnsureTopic(ctx, 1, 1))
	// A second call sees the existing topic and succeeds.
	s.Require().NoError(store.EnsureTopic(ctx, 1, 1))

	userID := id.UserID(uuid.New())
	event := audit.Event{
		ID:        uuid.NewString(),
		Action:    audit.EventUserProvisioned,
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Subject:   "newuser",
	}
	s.Require().NoError(store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(userID.String(), string(records[0].Key))

	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.ID, got.ID)
	s.Equal(audit.EventUserProvisioned, got.Action)
	s.Equal("newuser", got.Subject)
	s.Equal(userID, got.UserID)
}
