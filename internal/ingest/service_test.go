package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/commsledger/internal/broadcast"
	"example.com/commsledger/internal/domain"
	"example.com/commsledger/internal/resolve"
	"example.com/commsledger/internal/translator"
)

// memoryRepo implements domain.ActivityRepository for pipeline tests.
type memoryRepo struct {
	activities map[string]domain.Activity
	insertErr  error
	updateErr  error
	findErr    error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{activities: make(map[string]domain.Activity)}
}

func (r *memoryRepo) FindByCallSID(_ context.Context, organizationID, callSID string) (*domain.Activity, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, activity := range r.activities {
		if activity.OrganizationID != organizationID {
			continue
		}
		if call, ok := activity.Metadata.(domain.CallMetadata); ok && call.CallSID == callSID {
			found := activity
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) Insert(_ context.Context, activity domain.Activity) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.activities[activity.ID] = activity
	return nil
}

func (r *memoryRepo) Update(_ context.Context, update domain.ActivityUpdate) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	activity, ok := r.activities[update.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	activity.Notes = update.Notes
	activity.Metadata = update.Metadata
	activity.Related = update.Related
	activity.UserID = update.UserID
	activity.OccurredAt = update.OccurredAt
	activity.UpdatedAt = update.UpdatedAt
	r.activities[update.ID] = activity
	return nil
}

func (r *memoryRepo) Get(_ context.Context, organizationID, activityID string) (*domain.Activity, error) {
	activity, ok := r.activities[activityID]
	if !ok || activity.OrganizationID != organizationID {
		return nil, domain.ErrActivityNotFound
	}
	return &activity, nil
}

func (r *memoryRepo) ListByOrganization(_ context.Context, organizationID string, _ *domain.Cursor, _ int) ([]domain.Activity, *domain.Cursor, error) {
	var out []domain.Activity
	for _, activity := range r.activities {
		if activity.OrganizationID == organizationID {
			out = append(out, activity)
		}
	}
	return out, nil, nil
}

type stubResolver struct {
	resolution resolve.Resolution
}

func (s stubResolver) Resolve(context.Context, translator.Event) resolve.Resolution {
	return s.resolution
}

type recordingBroadcaster struct {
	events []broadcast.ActivityEvent
	err    error
}

func (b *recordingBroadcaster) Publish(_ context.Context, event broadcast.ActivityEvent) error {
	b.events = append(b.events, event)
	return b.err
}

func newTestService(repo *memoryRepo, resolution resolve.Resolution, bc *recordingBroadcaster) *Service {
	svc := NewService(repo, stubResolver{resolution: resolution}, bc, zap.NewNop())
	base := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc
}

func voiceCallback(callSID, status string, duration int, occurredAt time.Time) translator.Event {
	return translator.Event{
		Channel:        translator.ChannelVoice,
		IdempotencyKey: callSID,
		From:           "+15550001111",
		To:             "+15550002222",
		Provider:       "twilio",
		OccurredAt:     occurredAt,
		Voice: &translator.VoiceEvent{
			CallSID:   callSID,
			Direction: translator.DirectionInbound,
			Status:    status,
			Duration:  duration,
		},
	}
}

func TestIngestCallLifecycleCollapsesToOneRecord(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	resolution := resolve.Resolution{
		OrganizationID: "org-1",
		UserID:         "user-1",
		Related:        domain.RelatedRef{Kind: domain.RelatedCustomer, ID: "cust-1"},
	}
	svc := newTestService(repo, resolution, bc)
	ctx := context.Background()

	t0 := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	first, outcome, err := svc.Ingest(ctx, voiceCallback("CA1", "initiated", 0, t0))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)

	second, outcome, err := svc.Ingest(ctx, voiceCallback("CA1", "completed", 42, t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.activities, 1)

	lines := strings.Split(second.Notes, "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Inbound call initiated: +15550001111 -> +15550002222", lines[0])
	require.Equal(t, "Inbound call completed (00:42): +15550001111 -> +15550002222", lines[1])

	call, ok := second.Metadata.(domain.CallMetadata)
	require.True(t, ok)
	require.Equal(t, "completed", call.Status)
	require.Equal(t, 42, call.Duration)
	require.Equal(t, t0.Add(time.Minute), second.OccurredAt)
}

func TestIngestCallMergeKeepsEarlierValues(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)
	ctx := context.Background()

	t0 := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

	completed := voiceCallback("CA2", "completed", 42, t0.Add(time.Minute))
	completed.Voice.RecordingURL = "https://api.example.com/recordings/RE2"
	_, _, err := svc.Ingest(ctx, completed)
	require.NoError(t, err)

	// Late-arriving earlier state must not erase duration or recording.
	activity, outcome, err := svc.Ingest(ctx, voiceCallback("CA2", "ringing", 0, t0))
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)

	call := activity.Metadata.(domain.CallMetadata)
	require.Equal(t, 42, call.Duration)
	require.Equal(t, "https://api.example.com/recordings/RE2", call.RecordingURL)
	require.Equal(t, "ringing", call.Status)
}

func TestIngestSuppressesQueuedSMS(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)

	event := translator.Event{
		Channel:    translator.ChannelSMS,
		From:       "+15550001111",
		To:         "+15550002222",
		OccurredAt: time.Now().UTC(),
		SMS:        &translator.SMSEvent{MessageSID: "SM1", Status: "queued", Body: "Hola"},
	}

	activity, outcome, err := svc.Ingest(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuppressed, outcome)
	require.Nil(t, activity)
	require.Empty(t, repo.activities)
	require.Empty(t, bc.events)
}

func TestIngestDeliveredSMSCreatesRecord(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	resolution := resolve.Resolution{
		OrganizationID: "org-1",
		Related:        domain.RelatedRef{Kind: domain.RelatedLead, ID: "lead-1"},
	}
	svc := newTestService(repo, resolution, bc)

	event := translator.Event{
		Channel:    translator.ChannelSMS,
		From:       "+15550001111",
		To:         "+15550002222",
		Provider:   "twilio",
		OccurredAt: time.Now().UTC(),
		SMS: &translator.SMSEvent{
			MessageSID: "SM2",
			Direction:  translator.DirectionInbound,
			Status:     "delivered",
			Body:       "Hola",
		},
	}

	activity, outcome, err := svc.Ingest(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	require.Equal(t, domain.ActivityTypeSMS, activity.Type)
	require.Equal(t, `SMS delivered: "Hola"`, activity.Notes)
	require.Equal(t, domain.RelatedLead, activity.Related.Kind)

	sms := activity.Metadata.(domain.SmsMetadata)
	require.Equal(t, "SM2", sms.MessageSID)
	require.Equal(t, "delivered", sms.Status)
}

func TestIngestEachSMSCreatesNewRecord(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)
	ctx := context.Background()

	for _, sid := range []string{"SM10", "SM11"} {
		event := translator.Event{
			Channel:    translator.ChannelSMS,
			OccurredAt: time.Now().UTC(),
			SMS:        &translator.SMSEvent{MessageSID: sid, Status: "received", Body: "hey"},
		}
		_, outcome, err := svc.Ingest(ctx, event)
		require.NoError(t, err)
		require.Equal(t, OutcomeCreated, outcome)
	}
	require.Len(t, repo.activities, 2)
}

func TestIngestWhatsappDetection(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)

	event := translator.Event{
		Channel:    translator.ChannelSMS,
		From:       "whatsapp:+15550001111",
		To:         "whatsapp:+15550002222",
		OccurredAt: time.Now().UTC(),
		SMS:        &translator.SMSEvent{MessageSID: "SM3", Status: "received", Body: "hi"},
	}

	activity, _, err := svc.Ingest(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityTypeWhatsapp, activity.Type)
}

func TestIngestBouncedEmail(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)

	event := translator.Event{
		Channel:    translator.ChannelEmail,
		From:       "noreply@acme.example",
		To:         "jordan@customer.example",
		Provider:   "sendgrid",
		OccurredAt: time.Now().UTC(),
		Email: &translator.EmailEvent{
			MessageID: "msg-1",
			Subject:   "Your invoice",
			EventType: "bounce",
			Reason:    "mailbox full",
		},
	}

	activity, outcome, err := svc.Ingest(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	require.Equal(t, domain.ActivityTypeEmail, activity.Type)
	require.Equal(t, "Email bounced: mailbox full", activity.Notes)

	email := activity.Metadata.(domain.EmailMetadata)
	require.Equal(t, "bounced", email.Event)
	require.Equal(t, "mailbox full", email.ErrorMessage)
}

func TestIngestBroadcastFailureDoesNotAbort(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{err: errors.New("redis down")}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)

	_, outcome, err := svc.Ingest(context.Background(), voiceCallback("CA3", "completed", 10, time.Now().UTC()))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	require.Len(t, repo.activities, 1)
}

func TestIngestPersistenceErrorPropagates(t *testing.T) {
	repo := newMemoryRepo()
	repo.insertErr = errors.New("connection refused")
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)

	_, _, err := svc.Ingest(context.Background(), voiceCallback("CA4", "initiated", 0, time.Now().UTC()))
	require.Error(t, err)
	require.Empty(t, bc.events)
}

func TestIngestBroadcastPayload(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, resolve.Resolution{OrganizationID: "org-1"}, bc)

	_, _, err := svc.Ingest(context.Background(), voiceCallback("CA5", "completed", 42, time.Now().UTC()))
	require.NoError(t, err)

	require.Len(t, bc.events, 1)
	event := bc.events[0]
	require.Equal(t, broadcast.EventCallActivityCreated, event.Event)
	require.Equal(t, "org-1", event.OrganizationID)
	require.Equal(t, "call", event.ActivityType)
	require.Equal(t, "completed", event.CallStatus)
	require.Equal(t, "+15550001111", event.PhoneNumber)
}

func TestIngestKeepsExistingAttributionOnUpdate(t *testing.T) {
	repo := newMemoryRepo()
	bc := &recordingBroadcaster{}
	resolution := resolve.Resolution{
		OrganizationID: "org-1",
		UserID:         "user-1",
		Related:        domain.RelatedRef{Kind: domain.RelatedCustomer, ID: "cust-1"},
	}
	svc := newTestService(repo, resolution, bc)
	ctx := context.Background()

	_, _, err := svc.Ingest(ctx, voiceCallback("CA6", "initiated", 0, time.Now().UTC()))
	require.NoError(t, err)

	// Later events resolve to nothing; the original attribution must stay.
	svc.resolver = stubResolver{resolution: resolve.Resolution{OrganizationID: "org-1"}}
	activity, _, err := svc.Ingest(ctx, voiceCallback("CA6", "completed", 30, time.Now().UTC()))
	require.NoError(t, err)
	require.Equal(t, "user-1", activity.UserID)
	require.Equal(t, "cust-1", activity.Related.ID)
}
