// Package resolve links communication events to CRM entities and attributes
// them to an organization. Every lookup is best-effort: failures degrade to
// an absent reference and never abort ingestion.
package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"example.com/commsledger/internal/domain"
	"example.com/commsledger/internal/translator"
)

// Directory is the read-only CRM lookup surface. Implementations return an
// empty id when no entity matches.
type Directory interface {
	CustomerByPhone(ctx context.Context, organizationID, phone string) (string, error)
	LeadByPhone(ctx context.Context, organizationID, phone string) (string, error)
	CustomerByEmail(ctx context.Context, organizationID, email string) (string, error)
	LeadByEmail(ctx context.Context, organizationID, email string) (string, error)
}

// OrganizationDirectory maps a provisioned receiving number to its owning
// organization and, when configured, the responsible staff member.
type OrganizationDirectory interface {
	OrganizationByNumber(ctx context.Context, number string) (organizationID, userID string, err error)
}

// Resolution is the enrichment attached to an event before upsert.
type Resolution struct {
	OrganizationID string
	UserID         string
	Related        domain.RelatedRef
}

// Resolver performs organization attribution and entity resolution.
type Resolver struct {
	directory     Directory
	organizations OrganizationDirectory
	defaultOrgID  string
	logger        *zap.Logger
}

// New constructs a Resolver. defaultOrgID is the fallback organization used
// when no receiving-number mapping matches; multi-tenant deployments must
// provision the number mapping so the fallback never fires.
func New(directory Directory, organizations OrganizationDirectory, defaultOrgID string, logger *zap.Logger) *Resolver {
	return &Resolver{
		directory:     directory,
		organizations: organizations,
		defaultOrgID:  defaultOrgID,
		logger:        logger,
	}
}

// Resolve attributes the event to an organization and looks up the CRM
// entity on the customer side of the exchange. It never returns an error;
// lookup failures are logged and degrade to the default organization or an
// absent reference.
func (r *Resolver) Resolve(ctx context.Context, event translator.Event) Resolution {
	res := Resolution{OrganizationID: r.defaultOrgID}

	counterparty := event.From
	switch event.Channel {
	case translator.ChannelVoice, translator.ChannelSMS:
		orgID, userID, counter := r.attributeByNumber(ctx, event)
		if orgID != "" {
			res.OrganizationID = orgID
			res.UserID = userID
		}
		counterparty = counter
		res.Related = r.lookupByPhone(ctx, res.OrganizationID, counterparty)
	case translator.ChannelEmail:
		// Transactional events describe mail the organization sent; the
		// customer side is the recipient.
		counterparty = event.To
		res.Related = r.lookupByEmail(ctx, res.OrganizationID, counterparty)
	}

	return res
}

// attributeByNumber finds which side of the call/message is an organization
// number. It prefers the receiving side (To for inbound traffic), and falls
// back to the direction heuristic when neither number is provisioned.
func (r *Resolver) attributeByNumber(ctx context.Context, event translator.Event) (orgID, userID, counterparty string) {
	for _, candidate := range []struct{ own, other string }{
		{event.To, event.From},
		{event.From, event.To},
	} {
		own := strings.TrimPrefix(candidate.own, "whatsapp:")
		if own == "" {
			continue
		}
		org, user, err := r.organizations.OrganizationByNumber(ctx, own)
		if err != nil {
			r.logger.Warn("organization number lookup failed",
				zap.String("number", own), zap.Error(err))
			continue
		}
		if org != "" {
			return org, user, candidate.other
		}
	}

	direction := translator.DirectionInbound
	switch {
	case event.Voice != nil:
		direction = event.Voice.Direction
	case event.SMS != nil:
		direction = event.SMS.Direction
	}
	if direction == translator.DirectionOutbound {
		return "", "", event.To
	}
	return "", "", event.From
}

func (r *Resolver) lookupByPhone(ctx context.Context, organizationID, phone string) domain.RelatedRef {
	// WhatsApp traffic arrives with a whatsapp:+E164 address; the directory
	// stores bare numbers.
	phone = strings.TrimPrefix(phone, "whatsapp:")
	if phone == "" {
		return domain.RelatedRef{}
	}
	if id, err := r.directory.CustomerByPhone(ctx, organizationID, phone); err != nil {
		r.logger.Warn("customer phone lookup failed", zap.String("phone", phone), zap.Error(err))
	} else if id != "" {
		return r.ref(domain.RelatedCustomer, id)
	}
	if id, err := r.directory.LeadByPhone(ctx, organizationID, phone); err != nil {
		r.logger.Warn("lead phone lookup failed", zap.String("phone", phone), zap.Error(err))
	} else if id != "" {
		return r.ref(domain.RelatedLead, id)
	}
	return domain.RelatedRef{}
}

func (r *Resolver) lookupByEmail(ctx context.Context, organizationID, email string) domain.RelatedRef {
	if email == "" {
		return domain.RelatedRef{}
	}
	if id, err := r.directory.CustomerByEmail(ctx, organizationID, email); err != nil {
		r.logger.Warn("customer email lookup failed", zap.String("email", email), zap.Error(err))
	} else if id != "" {
		return r.ref(domain.RelatedCustomer, id)
	}
	if id, err := r.directory.LeadByEmail(ctx, organizationID, email); err != nil {
		r.logger.Warn("lead email lookup failed", zap.String("email", email), zap.Error(err))
	} else if id != "" {
		return r.ref(domain.RelatedLead, id)
	}
	return domain.RelatedRef{}
}

// ref validates the reference at the resolver boundary; an invalid pair is
// treated as unresolved rather than propagated.
func (r *Resolver) ref(kind domain.RelatedKind, id string) domain.RelatedRef {
	ref, err := domain.NewRelatedRef(kind, id)
	if err != nil {
		r.logger.Warn("discarding invalid related reference",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return domain.RelatedRef{}
	}
	return ref
}
