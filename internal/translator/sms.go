package translator

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// rfc2822 is the timestamp layout used by the SMS provider's Date* fields.
const rfc2822 = "Mon, 2 Jan 2006 15:04:05 -0700"

// SMS translates an SMS status callback into an Event. DateSent is preferred
// for the event timestamp, then DateCreated, then DateUpdated, then the
// ingestion time. A missing MessageSid is an error; everything else defaults.
func SMS(form url.Values, now time.Time) (Event, error) {
	messageSID := strings.TrimSpace(form.Get("MessageSid"))
	if messageSID == "" {
		return Event{}, ErrMissingIdentifier
	}

	occurredAt := now.UTC()
	for _, field := range []string{"DateSent", "DateCreated", "DateUpdated"} {
		if raw := strings.TrimSpace(form.Get(field)); raw != "" {
			if parsed, err := time.Parse(rfc2822, raw); err == nil {
				occurredAt = parsed.UTC()
				break
			}
		}
	}

	mediaCount := 0
	if raw := strings.TrimSpace(form.Get("NumMedia")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			mediaCount = parsed
		}
	}
	var mediaURLs []string
	for i := 0; i < 5; i++ {
		if mediaURL := strings.TrimSpace(form.Get(fmt.Sprintf("MediaUrl%d", i))); mediaURL != "" {
			mediaURLs = append(mediaURLs, mediaURL)
		}
	}
	if mediaCount < len(mediaURLs) {
		mediaCount = len(mediaURLs)
	}

	status := strings.TrimSpace(form.Get("MessageStatus"))
	direction := normalizeDirection(form.Get("Direction"))
	if status == "" && direction == DirectionInbound {
		// Inbound messages arrive without a delivery status.
		status = "received"
	}

	return Event{
		Channel:        ChannelSMS,
		IdempotencyKey: messageSID,
		From:           strings.TrimSpace(form.Get("From")),
		To:             strings.TrimSpace(form.Get("To")),
		Provider:       providerTwilio,
		OccurredAt:     occurredAt,
		SMS: &SMSEvent{
			MessageSID:   messageSID,
			Direction:    direction,
			Status:       status,
			Body:         form.Get("Body"),
			MediaURLs:    mediaURLs,
			MediaCount:   mediaCount,
			ErrorCode:    strings.TrimSpace(form.Get("ErrorCode")),
			ErrorMessage: strings.TrimSpace(form.Get("ErrorMessage")),
		},
	}, nil
}
