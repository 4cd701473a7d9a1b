// Package postgres provides pgx-backed persistence for the activity ledger
// and its transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/commsledger/internal/domain"
	"example.com/commsledger/internal/events"
	"example.com/commsledger/internal/observability"
)

const activityColumns = `activity_id, organization_id, activity_type, user_id, notes,
        related_type, related_id, occurred_at, created_at, updated_at, metadata`

// Repository persists activities and outbox events. All statements run
// inside a transaction that pins app.organization_id, so row-level security
// policies scope every read and write to one tenant.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByCallSID looks up the single lifecycle record for a call. Returns
// (nil, nil) when no record exists.
func (r *Repository) FindByCallSID(ctx context.Context, organizationID, callSID string) (*domain.Activity, error) {
	if callSID == "" {
		return nil, nil
	}

	query := `SELECT ` + activityColumns + `
        FROM activities
        WHERE organization_id=$1 AND metadata->>'call_sid'=$2`

	var activity *domain.Activity
	err := r.withTenantTx(ctx, organizationID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, query, organizationID, callSID)
		found, scanErr := scanActivity(row)
		if scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return nil
			}
			return scanErr
		}
		activity = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// Insert persists a new activity and records the activity.logged outbox
// event in the same transaction.
func (r *Repository) Insert(ctx context.Context, activity domain.Activity) error {
	metadata, err := domain.MarshalMetadata(activity.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	err = r.withTenantTx(ctx, activity.OrganizationID, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO activities (activity_id, organization_id, activity_type, user_id, notes,
                related_type, related_id, occurred_at, created_at, updated_at, metadata)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

		if _, err := tx.Exec(ctx, stmt,
			activity.ID,
			activity.OrganizationID,
			string(activity.Type),
			nullIfEmpty(activity.UserID),
			activity.Notes,
			nullIfEmpty(string(activity.Related.Kind)),
			nullIfEmpty(activity.Related.ID),
			activity.OccurredAt,
			activity.CreatedAt,
			activity.UpdatedAt,
			metadata,
		); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, activity, "activity.logged", events.ActivityLogged{
			ActivityID:     activity.ID,
			OrganizationID: activity.OrganizationID,
			UserID:         activity.UserID,
			ActivityType:   string(activity.Type),
			Notes:          activity.Notes,
			RelatedType:    string(activity.Related.Kind),
			RelatedID:      activity.Related.ID,
			OccurredAt:     activity.OccurredAt,
		})
	})
	if err != nil {
		return err
	}

	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Update writes the mutable fields of a voice lifecycle record and records
// the activity.updated outbox event. The immutable columns
// (organization_id, activity_type, created_at) are never touched.
func (r *Repository) Update(ctx context.Context, update domain.ActivityUpdate) error {
	metadata, err := domain.MarshalMetadata(update.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	callStatus := ""
	if call, ok := update.Metadata.(domain.CallMetadata); ok {
		callStatus = call.Status
	}

	err = r.withTenantTx(ctx, update.OrganizationID, func(tx pgx.Tx) error {
		const stmt = `UPDATE activities
            SET notes=$3, metadata=$4, user_id=$5, related_type=$6, related_id=$7, occurred_at=$8, updated_at=$9
            WHERE organization_id=$1 AND activity_id=$2`

		tag, err := tx.Exec(ctx, stmt,
			update.OrganizationID,
			update.ID,
			update.Notes,
			metadata,
			nullIfEmpty(update.UserID),
			nullIfEmpty(string(update.Related.Kind)),
			nullIfEmpty(update.Related.ID),
			update.OccurredAt,
			update.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}

		outboxActivity := domain.Activity{ID: update.ID, OrganizationID: update.OrganizationID}
		return insertOutbox(ctx, tx, outboxActivity, "activity.updated", events.ActivityUpdated{
			ActivityID:     update.ID,
			OrganizationID: update.OrganizationID,
			CallStatus:     callStatus,
			OccurredAt:     update.OccurredAt,
		})
	})
	if err != nil {
		return err
	}

	observability.RecordActivityPersisted(update.UpdatedAt)
	return nil
}

// Get retrieves an activity by id within one organization.
func (r *Repository) Get(ctx context.Context, organizationID, activityID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + `
        FROM activities WHERE organization_id=$1 AND activity_id=$2`

	var activity *domain.Activity
	err := r.withTenantTx(ctx, organizationID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, query, organizationID, activityID)
		found, scanErr := scanActivity(row)
		if scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return nil
			}
			return scanErr
		}
		activity = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// ListByOrganization returns the organization's ledger ordered newest first.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{organizationID, limit}
	query := `SELECT ` + activityColumns + `
        FROM activities WHERE organization_id=$1`

	if cursor != nil {
		query += ` AND (occurred_at, activity_id) < ($3, $4)`
		args = append(args, cursor.OccurredAt, cursor.ID)
	}
	query += ` ORDER BY occurred_at DESC, activity_id DESC LIMIT $2`

	results := make([]domain.Activity, 0, limit)
	err := r.withTenantTx(ctx, organizationID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			activity, scanErr := scanActivity(rows)
			if scanErr != nil {
				return scanErr
			}
			results = append(results, *activity)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}
	return results, next, nil
}

// withTenantTx runs fn in a transaction scoped to one organization.
func (r *Repository) withTenantTx(ctx context.Context, organizationID string, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.organization_id', $1, true)", organizationID); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	var (
		activity     domain.Activity
		activityType string
		userID       *string
		relatedKind  *string
		relatedID    *string
		metadata     []byte
	)
	if err := row.Scan(
		&activity.ID,
		&activity.OrganizationID,
		&activityType,
		&userID,
		&activity.Notes,
		&relatedKind,
		&relatedID,
		&activity.OccurredAt,
		&activity.CreatedAt,
		&activity.UpdatedAt,
		&metadata,
	); err != nil {
		return nil, err
	}

	activity.Type = domain.ActivityType(activityType)
	if userID != nil {
		activity.UserID = *userID
	}
	if relatedKind != nil && relatedID != nil {
		ref, err := domain.NewRelatedRef(domain.RelatedKind(*relatedKind), *relatedID)
		if err != nil {
			return nil, err
		}
		activity.Related = ref
	}

	decoded, err := domain.UnmarshalMetadata(activity.Type, metadata)
	if err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", activity.ID, err)
	}
	activity.Metadata = decoded
	return &activity, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", activity.ID, eventType, time.Now().UTC().UnixNano())

	const stmt = `INSERT INTO outbox (organization_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		activity.OrganizationID,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.PartitionKeyFn(activity),
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	PartitionKeyFn func(domain.Activity) string
}

var eventCatalog = map[string]EventMetadata{
	"activity.logged": {
		Topic: "activity_events",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.OrganizationID
		},
	},
	"activity.updated": {
		Topic: "activity_events",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.OrganizationID
		},
	},
}
