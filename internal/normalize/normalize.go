// Package normalize maps vendor status vocabularies onto the closed
// canonical sets and decides whether an event is activity-worthy.
package normalize

import "strings"

// Canonical voice call states.
const (
	CallInitiated = "initiated"
	CallRinging   = "ringing"
	CallAnswered  = "answered"
	CallCompleted = "completed"
	CallFailed    = "failed"
	CallNoAnswer  = "no-answer"
	CallBusy      = "busy"
	CallVoicemail = "voicemail"
)

// Canonical SMS delivery states.
const (
	SMSQueued      = "queued"
	SMSSending     = "sending"
	SMSSent        = "sent"
	SMSDelivered   = "delivered"
	SMSFailed      = "failed"
	SMSUndelivered = "undelivered"
	SMSReceived    = "received"
)

// Canonical email event states.
const (
	EmailProcessed   = "processed"
	EmailDelivered   = "delivered"
	EmailBounced     = "bounced"
	EmailDropped     = "dropped"
	EmailSpamReport  = "spam_report"
	EmailUnsubscribe = "unsubscribe"
	EmailOpened      = "opened"
	EmailClicked     = "clicked"
)

var voiceStatuses = map[string]string{
	"initiated":   CallInitiated,
	"queued":      CallInitiated,
	"ringing":     CallRinging,
	"in-progress": CallAnswered,
	"answered":    CallAnswered,
	"completed":   CallCompleted,
	"failed":      CallFailed,
	"no-answer":   CallNoAnswer,
	"busy":        CallBusy,
	"voicemail":   CallVoicemail,
}

var smsStatuses = map[string]string{
	"queued":      SMSQueued,
	"accepted":    SMSQueued,
	"sending":     SMSSending,
	"sent":        SMSSent,
	"delivered":   SMSDelivered,
	"failed":      SMSFailed,
	"undelivered": SMSUndelivered,
	"received":    SMSReceived,
	"receiving":   SMSReceived,
}

var emailEvents = map[string]string{
	"processed":      EmailProcessed,
	"delivered":      EmailDelivered,
	"bounce":         EmailBounced,
	"bounced":        EmailBounced,
	"dropped":        EmailDropped,
	"spamreport":     EmailSpamReport,
	"spam_report":    EmailSpamReport,
	"spam":           EmailSpamReport,
	"unsubscribe":    EmailUnsubscribe,
	"group_unsub":    EmailUnsubscribe,
	"open":           EmailOpened,
	"opened":         EmailOpened,
	"click":          EmailClicked,
	"clicked":        EmailClicked,
}

// lookup is case-insensitive with fallback to the raw value, so unfamiliar
// provider states pass through instead of breaking ingestion.
func lookup(table map[string]string, raw string) string {
	if canonical, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return canonical
	}
	return raw
}

// CallStatus maps a vendor call status onto the canonical voice set.
func CallStatus(raw string) string { return lookup(voiceStatuses, raw) }

// SMSStatus maps a vendor message status onto the canonical SMS set.
func SMSStatus(raw string) string { return lookup(smsStatuses, raw) }

// EmailEvent maps a vendor event name onto the canonical email set.
func EmailEvent(raw string) string { return lookup(emailEvents, raw) }
