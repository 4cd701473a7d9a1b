// Package events defines the durable event payloads written to the outbox
// and delivered to downstream consumers.
package events

import "time"

// ActivityLogged is emitted when a new ledger record is created.
type ActivityLogged struct {
	ActivityID     string    `json:"activity_id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id,omitempty"`
	ActivityType   string    `json:"activity_type"`
	Notes          string    `json:"notes"`
	RelatedType    string    `json:"related_type,omitempty"`
	RelatedID      string    `json:"related_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ActivityUpdated is emitted when a voice lifecycle event mutates an
// existing record.
type ActivityUpdated struct {
	ActivityID     string    `json:"activity_id"`
	OrganizationID string    `json:"organization_id"`
	CallStatus     string    `json:"call_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
