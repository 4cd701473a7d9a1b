package translator

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// providerTwilio is the provider tag recorded for voice and SMS callbacks.
const providerTwilio = "twilio"

// Voice translates a voice status callback into an Event. The form field
// names (CallSid, From, To, Direction, CallStatus, CallDuration,
// RecordingUrl) are a bit-exact contract with the provider. Missing optional
// fields get safe defaults; only a missing CallSid is an error.
func Voice(form url.Values, now time.Time) (Event, error) {
	callSID := strings.TrimSpace(form.Get("CallSid"))
	if callSID == "" {
		return Event{}, ErrMissingIdentifier
	}

	duration := 0
	if raw := form.Get("CallDuration"); raw != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && parsed >= 0 {
			duration = parsed
		}
	}

	return Event{
		Channel:        ChannelVoice,
		IdempotencyKey: callSID,
		From:           strings.TrimSpace(form.Get("From")),
		To:             strings.TrimSpace(form.Get("To")),
		Provider:       providerTwilio,
		OccurredAt:     now.UTC(),
		Voice: &VoiceEvent{
			CallSID:      callSID,
			Direction:    normalizeDirection(form.Get("Direction")),
			Status:       strings.TrimSpace(form.Get("CallStatus")),
			Duration:     duration,
			RecordingURL: strings.TrimSpace(form.Get("RecordingUrl")),
		},
	}, nil
}

// normalizeDirection collapses vendor direction vocabulary
// (inbound, outbound-api, outbound-dial, ...) onto inbound/outbound,
// defaulting ambiguous values to inbound.
func normalizeDirection(raw string) string {
	if strings.Contains(strings.ToLower(strings.TrimSpace(raw)), "outbound") {
		return DirectionOutbound
	}
	return DirectionInbound
}
