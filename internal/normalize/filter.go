package normalize

import (
	"strings"

	"example.com/commsledger/internal/translator"
)

// emailWorthy is the allow-list of email states that produce a ledger
// record. processed and unrecognized states are transient noise.
var emailWorthy = map[string]struct{}{
	EmailDelivered:   {},
	EmailBounced:     {},
	EmailDropped:     {},
	EmailSpamReport:  {},
	EmailUnsubscribe: {},
	EmailOpened:      {},
	EmailClicked:     {},
}

// Worthy reports whether the event should create or mutate a ledger record.
// status must already be normalized for the event's channel. Voice events
// are always worthy: each one either creates or updates the single record
// for its call.
func Worthy(event translator.Event, status string) bool {
	switch event.Channel {
	case translator.ChannelVoice:
		return true
	case translator.ChannelSMS:
		if status == SMSQueued || status == SMSSending {
			return false
		}
		if event.SMS != nil && strings.TrimSpace(event.SMS.Body) == "" && event.SMS.MediaCount == 0 {
			return false
		}
		return true
	case translator.ChannelEmail:
		_, ok := emailWorthy[status]
		return ok
	default:
		return false
	}
}
