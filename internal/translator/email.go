package translator

import (
	"strconv"
	"strings"
	"time"
)

const providerSendgrid = "sendgrid"

// Email translates one transactional-email event object into an Event. The
// payload uses alternate field names per vendor generation (message_id|id,
// from_email|from, event_type|event, ...); both spellings are accepted.
// A missing message identifier is an error.
func Email(payload map[string]any, now time.Time) (Event, error) {
	messageID := stringField(payload, "message_id", "id")
	if messageID == "" {
		return Event{}, ErrMissingIdentifier
	}

	occurredAt := now.UTC()
	if unix, ok := numberField(payload, "timestamp"); ok && unix > 0 {
		occurredAt = time.Unix(unix, 0).UTC()
	}

	reason := stringField(payload, "bounce_reason", "unsubscribe_reason", "reason")

	return Event{
		Channel:        ChannelEmail,
		IdempotencyKey: messageID,
		From:           stringField(payload, "from_email", "from"),
		To:             stringField(payload, "to_email", "to"),
		Provider:       providerSendgrid,
		OccurredAt:     occurredAt,
		Email: &EmailEvent{
			MessageID:  messageID,
			Subject:    stringField(payload, "subject"),
			EventType:  stringField(payload, "event_type", "event"),
			TemplateID: stringField(payload, "template_id"),
			CampaignID: stringField(payload, "campaign_id"),
			Reason:     reason,
		},
	}, nil
}

// stringField returns the first non-empty string value among keys.
func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key]; ok {
			if str, ok := value.(string); ok {
				if trimmed := strings.TrimSpace(str); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return ""
}

// numberField reads a numeric field that may arrive as a JSON number or a
// numeric string.
func numberField(payload map[string]any, key string) (int64, bool) {
	switch value := payload[key].(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
