package normalize

import "testing"

func TestCallStatus(t *testing.T) {
	cases := map[string]string{
		"queued":      CallInitiated,
		"initiated":   CallInitiated,
		"ringing":     CallRinging,
		"in-progress": CallAnswered,
		"IN-PROGRESS": CallAnswered,
		"completed":   CallCompleted,
		"busy":        CallBusy,
		"no-answer":   CallNoAnswer,
		"voicemail":   CallVoicemail,
		" completed ": CallCompleted,
	}
	for raw, want := range cases {
		if got := CallStatus(raw); got != want {
			t.Errorf("CallStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCallStatusPassesUnknownThrough(t *testing.T) {
	if got := CallStatus("carrier-glitch"); got != "carrier-glitch" {
		t.Fatalf("expected raw passthrough, got %q", got)
	}
}

func TestSMSStatus(t *testing.T) {
	cases := map[string]string{
		"accepted":    SMSQueued,
		"queued":      SMSQueued,
		"sending":     SMSSending,
		"sent":        SMSSent,
		"delivered":   SMSDelivered,
		"undelivered": SMSUndelivered,
		"receiving":   SMSReceived,
		"received":    SMSReceived,
	}
	for raw, want := range cases {
		if got := SMSStatus(raw); got != want {
			t.Errorf("SMSStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestEmailEvent(t *testing.T) {
	cases := map[string]string{
		"bounce":      EmailBounced,
		"bounced":     EmailBounced,
		"open":        EmailOpened,
		"click":       EmailClicked,
		"spamreport":  EmailSpamReport,
		"spam":        EmailSpamReport,
		"group_unsub": EmailUnsubscribe,
		"Delivered":   EmailDelivered,
	}
	for raw, want := range cases {
		if got := EmailEvent(raw); got != want {
			t.Errorf("EmailEvent(%q) = %q, want %q", raw, got, want)
		}
	}
}
