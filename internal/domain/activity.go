// Package domain defines the canonical activity ledger record and its
// persistence contract.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidRelatedRef indicates a related-entity reference with an
	// unknown kind or a kind/id mismatch.
	ErrInvalidRelatedRef = errors.New("invalid related entity reference")
)

// ActivityType is the closed enumeration of ledger record types.
type ActivityType string

const (
	ActivityTypeSystem   ActivityType = "system"
	ActivityTypeCall     ActivityType = "call"
	ActivityTypeEmail    ActivityType = "email"
	ActivityTypeWhatsapp ActivityType = "whatsapp"
	ActivityTypeSMS      ActivityType = "sms"
	ActivityTypeVisit    ActivityType = "visit"
	ActivityTypeNote     ActivityType = "note"
)

// Valid reports whether t is a member of the closed enumeration.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTypeSystem, ActivityTypeCall, ActivityTypeEmail,
		ActivityTypeWhatsapp, ActivityTypeSMS, ActivityTypeVisit, ActivityTypeNote:
		return true
	}
	return false
}

// RelatedKind enumerates the CRM entity types an activity may reference.
type RelatedKind string

const (
	RelatedNone        RelatedKind = ""
	RelatedCustomer    RelatedKind = "customer"
	RelatedLead        RelatedKind = "lead"
	RelatedOpportunity RelatedKind = "opportunity"
	RelatedTask        RelatedKind = "task"
)

// RelatedRef is a validated reference to a CRM entity. The zero value means
// "no related entity". Kind and ID are either both set or both empty.
type RelatedRef struct {
	Kind RelatedKind
	ID   string
}

// NewRelatedRef validates kind/id pairing against the closed kind set.
func NewRelatedRef(kind RelatedKind, id string) (RelatedRef, error) {
	if kind == RelatedNone {
		if id != "" {
			return RelatedRef{}, fmt.Errorf("%w: id %q without kind", ErrInvalidRelatedRef, id)
		}
		return RelatedRef{}, nil
	}
	switch kind {
	case RelatedCustomer, RelatedLead, RelatedOpportunity, RelatedTask:
	default:
		return RelatedRef{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRelatedRef, kind)
	}
	if id == "" {
		return RelatedRef{}, fmt.Errorf("%w: kind %q without id", ErrInvalidRelatedRef, kind)
	}
	return RelatedRef{Kind: kind, ID: id}, nil
}

// IsZero reports whether the reference points at nothing.
func (r RelatedRef) IsZero() bool {
	return r.Kind == RelatedNone && r.ID == ""
}

// Activity is the canonical ledger record for one communication interaction.
// OrganizationID and Type never change after creation. Notes is an
// append-only log; updates concatenate new lines, never replace.
type Activity struct {
	ID             string
	OrganizationID string
	Type           ActivityType
	UserID         string
	Notes          string
	Related        RelatedRef
	OccurredAt     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Metadata       Metadata
}

// ActivityUpdate carries the mutable fields written on a voice lifecycle
// update. Related and UserID are only applied when previously unresolved.
type ActivityUpdate struct {
	ID             string
	OrganizationID string
	Notes          string
	Metadata       Metadata
	Related        RelatedRef
	UserID         string
	OccurredAt     time.Time
	UpdatedAt      time.Time
}

// Cursor models the pagination token for ledger listings.
type Cursor struct {
	OccurredAt time.Time
	ID         string
}

// ActivityRepository captures the persistence operations the upsert engine
// needs. Implementations are handed to the engine explicitly; there is no
// ambient store access. FindByCallSID returns (nil, nil) when no record
// exists for the key.
type ActivityRepository interface {
	FindByCallSID(ctx context.Context, organizationID, callSID string) (*Activity, error)
	Insert(ctx context.Context, activity Activity) error
	Update(ctx context.Context, update ActivityUpdate) error
	Get(ctx context.Context, organizationID, activityID string) (*Activity, error)
	ListByOrganization(ctx context.Context, organizationID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
}
