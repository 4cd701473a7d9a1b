// Package ingest orchestrates the webhook-to-ledger pipeline: normalize,
// filter, resolve, render notes, upsert, broadcast.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/commsledger/internal/broadcast"
	"example.com/commsledger/internal/domain"
	"example.com/commsledger/internal/normalize"
	"example.com/commsledger/internal/notes"
	"example.com/commsledger/internal/resolve"
	"example.com/commsledger/internal/translator"
)

// Outcome describes what an event did to the ledger.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeUpdated    Outcome = "updated"
	OutcomeSuppressed Outcome = "suppressed"
)

// Broadcaster publishes a realtime event after a successful write.
type Broadcaster interface {
	Publish(ctx context.Context, event broadcast.ActivityEvent) error
}

// Resolver enriches an event with organization and CRM entity context.
type Resolver interface {
	Resolve(ctx context.Context, event translator.Event) resolve.Resolution
}

// Service is the activity upsert engine. Voice events collapse onto one
// record per (organization, call SID); SMS and email events each create a
// record. The repository handle is an explicit capability: there is no
// ambient store access.
type Service struct {
	repo        domain.ActivityRepository
	resolver    Resolver
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewService constructs the engine.
func NewService(repo domain.ActivityRepository, resolver Resolver, broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		resolver:    resolver,
		broadcaster: broadcaster,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Ingest runs one event through the pipeline. Persistence errors propagate
// so the webhook layer can ask the provider to retry; resolver and
// broadcast failures never abort the write path.
func (s *Service) Ingest(ctx context.Context, event translator.Event) (*domain.Activity, Outcome, error) {
	status := normalizeStatus(event)

	if !normalize.Worthy(event, status) {
		eventsCounter.WithLabelValues(string(event.Channel), string(OutcomeSuppressed)).Inc()
		return nil, OutcomeSuppressed, nil
	}

	resolution := s.resolver.Resolve(ctx, event)
	line := notes.Line(event, status)

	var (
		activity *domain.Activity
		outcome  Outcome
		err      error
	)
	if event.Channel == translator.ChannelVoice {
		activity, outcome, err = s.upsertCall(ctx, event, status, resolution, line)
	} else {
		activity, err = s.create(ctx, event, status, resolution, line)
		outcome = OutcomeCreated
	}
	if err != nil {
		return nil, outcome, err
	}

	eventsCounter.WithLabelValues(string(event.Channel), string(outcome)).Inc()
	s.publish(ctx, *activity)
	return activity, outcome, nil
}

// upsertCall finds the lifecycle record by call SID and either creates it or
// merges the new event in: metadata new-over-old, notes appended, timestamps
// advanced. A redelivered identical event appends its line again; the
// pipeline cannot tell a redelivery from a new lifecycle state.
func (s *Service) upsertCall(ctx context.Context, event translator.Event, status string, resolution resolve.Resolution, line string) (*domain.Activity, Outcome, error) {
	existing, err := s.repo.FindByCallSID(ctx, resolution.OrganizationID, event.Voice.CallSID)
	if err != nil {
		return nil, OutcomeUpdated, fmt.Errorf("find call activity: %w", err)
	}
	if existing == nil {
		activity, err := s.create(ctx, event, status, resolution, line)
		return activity, OutcomeCreated, err
	}

	merged := callMetadata(event, status)
	if prior, ok := existing.Metadata.(domain.CallMetadata); ok {
		merged = prior.Merge(merged)
	}

	update := domain.ActivityUpdate{
		ID:             existing.ID,
		OrganizationID: existing.OrganizationID,
		Notes:          existing.Notes + "\n" + line,
		Metadata:       merged,
		Related:        existing.Related,
		UserID:         existing.UserID,
		OccurredAt:     event.OccurredAt,
		UpdatedAt:      s.now(),
	}
	if existing.Related.IsZero() {
		update.Related = resolution.Related
	}
	if existing.UserID == "" {
		update.UserID = resolution.UserID
	}

	if err := s.repo.Update(ctx, update); err != nil {
		return nil, OutcomeUpdated, fmt.Errorf("update call activity: %w", err)
	}

	updated := *existing
	updated.Notes = update.Notes
	updated.Metadata = update.Metadata
	updated.Related = update.Related
	updated.UserID = update.UserID
	updated.OccurredAt = update.OccurredAt
	updated.UpdatedAt = update.UpdatedAt
	return &updated, OutcomeUpdated, nil
}

func (s *Service) create(ctx context.Context, event translator.Event, status string, resolution resolve.Resolution, line string) (*domain.Activity, error) {
	now := s.now()
	activity := domain.Activity{
		ID:             uuid.NewString(),
		OrganizationID: resolution.OrganizationID,
		Type:           activityType(event),
		UserID:         resolution.UserID,
		Notes:          line,
		Related:        resolution.Related,
		OccurredAt:     event.OccurredAt,
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       metadataFor(event, status),
	}

	if err := s.repo.Insert(ctx, activity); err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return &activity, nil
}

// publish fans the write out to live clients. Failures are observable in
// logs and metrics but the write already succeeded; the caller sees success.
func (s *Service) publish(ctx context.Context, activity domain.Activity) {
	event, err := broadcast.FromActivity(activity)
	if err != nil {
		s.logger.Warn("building broadcast payload failed",
			zap.String("activity_id", activity.ID), zap.Error(err))
		return
	}
	if err := s.broadcaster.Publish(ctx, event); err != nil {
		s.logger.Warn("realtime broadcast failed",
			zap.String("activity_id", activity.ID),
			zap.String("organization_id", activity.OrganizationID),
			zap.Error(err))
	}
}

func normalizeStatus(event translator.Event) string {
	switch {
	case event.Voice != nil:
		return normalize.CallStatus(event.Voice.Status)
	case event.SMS != nil:
		return normalize.SMSStatus(event.SMS.Status)
	case event.Email != nil:
		return normalize.EmailEvent(event.Email.EventType)
	}
	return ""
}

// activityType maps the channel onto the ledger enumeration. SMS traffic
// addressed with the whatsapp: prefix is recorded as a whatsapp activity.
func activityType(event translator.Event) domain.ActivityType {
	switch event.Channel {
	case translator.ChannelVoice:
		return domain.ActivityTypeCall
	case translator.ChannelSMS:
		if strings.HasPrefix(event.From, "whatsapp:") || strings.HasPrefix(event.To, "whatsapp:") {
			return domain.ActivityTypeWhatsapp
		}
		return domain.ActivityTypeSMS
	case translator.ChannelEmail:
		return domain.ActivityTypeEmail
	}
	return domain.ActivityTypeSystem
}

func metadataFor(event translator.Event, status string) domain.Metadata {
	switch {
	case event.Voice != nil:
		return callMetadata(event, status)
	case event.SMS != nil:
		return domain.SmsMetadata{
			MessageSID:   event.SMS.MessageSID,
			Body:         event.SMS.Body,
			From:         event.From,
			To:           event.To,
			Direction:    event.SMS.Direction,
			Provider:     event.Provider,
			Status:       status,
			MediaCount:   event.SMS.MediaCount,
			MediaURLs:    event.SMS.MediaURLs,
			ErrorCode:    event.SMS.ErrorCode,
			ErrorMessage: event.SMS.ErrorMessage,
		}
	case event.Email != nil:
		return domain.EmailMetadata{
			MessageID:    event.Email.MessageID,
			From:         event.From,
			To:           event.To,
			Subject:      event.Email.Subject,
			Event:        status,
			Provider:     event.Provider,
			TemplateID:   event.Email.TemplateID,
			CampaignID:   event.Email.CampaignID,
			ErrorMessage: event.Email.Reason,
		}
	}
	return nil
}

func callMetadata(event translator.Event, status string) domain.CallMetadata {
	return domain.CallMetadata{
		CallSID:      event.Voice.CallSID,
		Direction:    event.Voice.Direction,
		From:         event.From,
		To:           event.To,
		Provider:     event.Provider,
		Status:       status,
		Duration:     event.Voice.Duration,
		RecordingURL: event.Voice.RecordingURL,
	}
}
