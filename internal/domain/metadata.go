package domain

import (
	"encoding/json"
	"fmt"
)

// Metadata is the per-channel attribute bag stored with an activity. It is a
// sealed variant: exactly one of CallMetadata, SmsMetadata, or EmailMetadata.
// The JSON field names are a stored contract; renaming them breaks existing
// rows and the broadcast payload.
type Metadata interface {
	Channel() string
}

// CallMetadata carries voice-channel attributes. CallSID is the idempotency
// key collapsing a call's lifecycle events onto one record.
type CallMetadata struct {
	CallSID      string `json:"call_sid"`
	Direction    string `json:"call_direction"`
	From         string `json:"call_from"`
	To           string `json:"call_to"`
	Provider     string `json:"call_provider"`
	Status       string `json:"call_status"`
	Duration     int    `json:"call_duration"`
	RecordingURL string `json:"call_recording_url,omitempty"`
}

func (CallMetadata) Channel() string { return "voice" }

// Merge overlays next onto m. New values win on conflict; zero values in
// next leave the existing value in place, so a completed event without a
// recording URL does not erase the one delivered earlier.
func (m CallMetadata) Merge(next CallMetadata) CallMetadata {
	out := m
	if next.CallSID != "" {
		out.CallSID = next.CallSID
	}
	if next.Direction != "" {
		out.Direction = next.Direction
	}
	if next.From != "" {
		out.From = next.From
	}
	if next.To != "" {
		out.To = next.To
	}
	if next.Provider != "" {
		out.Provider = next.Provider
	}
	if next.Status != "" {
		out.Status = next.Status
	}
	if next.Duration > 0 {
		out.Duration = next.Duration
	}
	if next.RecordingURL != "" {
		out.RecordingURL = next.RecordingURL
	}
	return out
}

// SmsMetadata carries SMS-channel attributes for a single provider event.
type SmsMetadata struct {
	MessageSID   string   `json:"sms_sid"`
	Body         string   `json:"sms_body"`
	From         string   `json:"sms_from"`
	To           string   `json:"sms_to"`
	Direction    string   `json:"sms_direction"`
	Provider     string   `json:"sms_provider"`
	Status       string   `json:"sms_status"`
	MediaCount   int      `json:"sms_media_count"`
	MediaURLs    []string `json:"sms_media_urls,omitempty"`
	ErrorCode    string   `json:"sms_error_code,omitempty"`
	ErrorMessage string   `json:"sms_error_message,omitempty"`
}

func (SmsMetadata) Channel() string { return "sms" }

// EmailMetadata carries transactional-email attributes for a single event.
type EmailMetadata struct {
	MessageID    string `json:"email_message_id"`
	From         string `json:"email_from"`
	To           string `json:"email_to"`
	Subject      string `json:"email_subject"`
	Event        string `json:"email_event"`
	Provider     string `json:"email_provider"`
	TemplateID   string `json:"email_template_id,omitempty"`
	CampaignID   string `json:"email_campaign_id,omitempty"`
	ErrorMessage string `json:"email_error_message,omitempty"`
}

func (EmailMetadata) Channel() string { return "email" }

// MarshalMetadata encodes a metadata variant for storage and broadcast.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// UnmarshalMetadata decodes the stored attribute bag. The activity type
// determines the variant; there is no discriminator in the JSON itself.
func UnmarshalMetadata(activityType ActivityType, data []byte) (Metadata, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch activityType {
	case ActivityTypeCall:
		var m CallMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActivityTypeSMS, ActivityTypeWhatsapp:
		var m SmsMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case ActivityTypeEmail:
		var m EmailMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("no metadata variant for activity type %q", activityType)
	}
}
