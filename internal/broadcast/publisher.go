// Package broadcast publishes ledger writes onto the organization-scoped
// realtime channel consumed by live clients.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/commsledger/internal/domain"
	"example.com/commsledger/internal/observability"
	"example.com/commsledger/internal/translator"
)

// ChannelActivities is the pub/sub topic carrying activity events.
const ChannelActivities = "activities"

// Event names carried in the payload.
const (
	EventActivityCreated     = "activity_created"
	EventCallActivityCreated = "call_activity_created"
)

// ActivityEvent is the flat broadcast payload. The convenience top-level
// copies (phone_number, call_status, email_subject, related_*) let clients
// filter without a second fetch.
type ActivityEvent struct {
	Event          string          `json:"event"`
	ActivityID     string          `json:"activity_id"`
	ActivityType   string          `json:"activity_type"`
	OrganizationID string          `json:"organization_id"`
	UserID         string          `json:"user_id,omitempty"`
	Notes          string          `json:"notes"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Metadata       json.RawMessage `json:"metadata"`
	PhoneNumber    string          `json:"phone_number,omitempty"`
	CallStatus     string          `json:"call_status,omitempty"`
	EmailSubject   string          `json:"email_subject,omitempty"`
	RelatedType    string          `json:"related_type,omitempty"`
	RelatedID      string          `json:"related_id,omitempty"`
}

// FromActivity builds the broadcast payload for a persisted record.
func FromActivity(activity domain.Activity) (ActivityEvent, error) {
	metadata, err := domain.MarshalMetadata(activity.Metadata)
	if err != nil {
		return ActivityEvent{}, fmt.Errorf("marshal metadata: %w", err)
	}

	event := ActivityEvent{
		Event:          EventActivityCreated,
		ActivityID:     activity.ID,
		ActivityType:   string(activity.Type),
		OrganizationID: activity.OrganizationID,
		UserID:         activity.UserID,
		Notes:          activity.Notes,
		OccurredAt:     activity.OccurredAt,
		Metadata:       metadata,
		RelatedType:    string(activity.Related.Kind),
		RelatedID:      activity.Related.ID,
	}

	switch m := activity.Metadata.(type) {
	case domain.CallMetadata:
		event.Event = EventCallActivityCreated
		event.CallStatus = m.Status
		event.PhoneNumber = counterpartyNumber(m.Direction, m.From, m.To)
	case domain.SmsMetadata:
		event.PhoneNumber = counterpartyNumber(m.Direction, m.From, m.To)
	case domain.EmailMetadata:
		event.EmailSubject = m.Subject
	}

	return event, nil
}

// counterpartyNumber picks the customer side of the exchange.
func counterpartyNumber(direction, from, to string) string {
	if direction == translator.DirectionOutbound {
		return to
	}
	return from
}

// Publisher fans ledger writes out over Redis pub/sub. Publishing is
// best-effort: the ingest service logs and counts failures but never fails
// the write because of them.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher constructs a Publisher on the given Redis client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish emits one message on the activities channel.
func (p *Publisher) Publish(ctx context.Context, event ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal broadcast event: %w", err)
	}
	if err := p.rdb.Publish(ctx, ChannelActivities, payload).Err(); err != nil {
		publishFailures.Inc()
		return fmt.Errorf("publish activity event: %w", err)
	}
	publishedCounter.WithLabelValues(event.Event).Inc()
	observability.RecordActivityBroadcast(event.OccurredAt)
	return nil
}
