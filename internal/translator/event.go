// Package translator converts vendor webhook payloads into the internal,
// provider-agnostic event shape consumed by the ingestion pipeline.
package translator

import (
	"errors"
	"time"
)

// ErrMissingIdentifier indicates a payload without its required provider
// identifier (CallSid, MessageSid, message_id). Such events are dropped by
// the webhook layer with a warning; they never reach the ledger.
var ErrMissingIdentifier = errors.New("payload missing provider identifier")

// Channel identifies the communication channel an event arrived on.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Event is the uniform internal shape produced by the channel translators.
// Exactly one of Voice, SMS, Email is non-nil, matching Channel.
type Event struct {
	Channel        Channel
	IdempotencyKey string
	From           string
	To             string
	Provider       string
	OccurredAt     time.Time

	Voice *VoiceEvent
	SMS   *SMSEvent
	Email *EmailEvent
}

// VoiceEvent carries the voice-specific payload in vendor vocabulary; the
// status string is normalized downstream.
type VoiceEvent struct {
	CallSID      string
	Direction    string
	Status       string
	Duration     int
	RecordingURL string
}

// SMSEvent carries the SMS-specific payload.
type SMSEvent struct {
	MessageSID   string
	Direction    string
	Status       string
	Body         string
	MediaURLs    []string
	MediaCount   int
	ErrorCode    string
	ErrorMessage string
}

// EmailEvent carries the transactional-email payload.
type EmailEvent struct {
	MessageID  string
	Subject    string
	EventType  string
	TemplateID string
	CampaignID string
	Reason     string
}
