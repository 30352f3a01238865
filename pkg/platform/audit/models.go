package audit

import (
	"context"
	"time"

	id "market/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers account and registration records that must be kept.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication faults.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventUserProvisioned       AuditEvent = "user_provisioned"
	EventMarketUserRegistered  AuditEvent = "market_user_registered"
	EventRegistrationRejected  AuditEvent = "registration_rejected"
	EventAuthFailed            AuditEvent = "auth_failed"
	EventProvisionRaceResolved AuditEvent = "provision_race_resolved"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserProvisioned:       CategoryCompliance,
	EventMarketUserRegistered:  CategoryCompliance,
	EventAuthFailed:            CategorySecurity,
	EventRegistrationRejected:  CategoryOperations,
	EventProvisionRaceResolved: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Action    AuditEvent    `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id"`
	// Subject is the login the event is about.
	Subject   string `json:"subject"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Reference points at the record the action produced, e.g. a market user id.
	Reference string `json:"reference,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
