// Package notes renders the human-readable ledger line for one event.
package notes

import (
	"fmt"
	"strings"

	"example.com/commsledger/internal/normalize"
	"example.com/commsledger/internal/translator"
)

// maxBodyPreview caps the SMS body excerpt included in a notes line.
const maxBodyPreview = 100

// Line produces one channel- and state-specific description line for an
// event. status must already be normalized.
func Line(event translator.Event, status string) string {
	switch event.Channel {
	case translator.ChannelVoice:
		return callLine(event, status)
	case translator.ChannelSMS:
		return smsLine(event, status)
	case translator.ChannelEmail:
		return emailLine(event, status)
	default:
		return fmt.Sprintf("%s event: %s", event.Channel, status)
	}
}

func callLine(event translator.Event, status string) string {
	direction := "Inbound"
	if event.Voice != nil && event.Voice.Direction == translator.DirectionOutbound {
		direction = "Outbound"
	}

	line := fmt.Sprintf("%s call %s", direction, status)
	if status == normalize.CallCompleted && event.Voice != nil && event.Voice.Duration > 0 {
		line += fmt.Sprintf(" (%s)", formatDuration(event.Voice.Duration))
	}
	if event.From != "" || event.To != "" {
		line += fmt.Sprintf(": %s -> %s", event.From, event.To)
	}
	return line
}

func smsLine(event translator.Event, status string) string {
	line := "SMS " + status
	if event.SMS == nil {
		return line
	}
	switch status {
	case normalize.SMSFailed, normalize.SMSUndelivered:
		if event.SMS.ErrorMessage != "" {
			return line + ": " + event.SMS.ErrorMessage
		}
		return line
	}
	if preview := bodyPreview(event.SMS.Body); preview != "" {
		line += fmt.Sprintf(": %q", preview)
	} else if event.SMS.MediaCount > 0 {
		line += fmt.Sprintf(" (%d media)", event.SMS.MediaCount)
	}
	return line
}

func emailLine(event translator.Event, status string) string {
	line := "Email " + status
	if event.Email == nil {
		return line
	}
	switch status {
	case normalize.EmailBounced, normalize.EmailDropped, normalize.EmailSpamReport, normalize.EmailUnsubscribe:
		if event.Email.Reason != "" {
			return line + ": " + event.Email.Reason
		}
	default:
		if event.Email.Subject != "" {
			return line + ": " + event.Email.Subject
		}
	}
	return line
}

// formatDuration renders seconds as mm:ss.
func formatDuration(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func bodyPreview(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) > maxBodyPreview {
		return string(runes[:maxBodyPreview]) + "..."
	}
	return body
}
