package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relay/internal/domain"
	"relay/internal/event"
	"relay/internal/observability/metrics"
	"relay/internal/presence"
)

// Relationships runs the invite → accept state machine and answers the
// authorization question used by the message router.
type Relationships struct {
	identities    IdentityRepository
	invites       InviteRepository
	relationships RelationshipRepository
	presence      *presence.Registry
	requireInvite bool
	now           func() time.Time
}

func NewRelationships(identities IdentityRepository, invites InviteRepository, rels RelationshipRepository, reg *presence.Registry, requireInvite bool) *Relationships {
	return &Relationships{
		identities:    identities,
		invites:       invites,
		relationships: rels,
		presence:      reg,
		requireInvite: requireInvite,
		now:           time.Now,
	}
}

// Invite records a pending invite from → to and tells the recipient if it is
// online. Repeating an invite for the same pair is a no-op.
func (r *Relationships) Invite(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: fromCode and toCode are required", domain.ErrInvalidRequest)
	}
	if from == to {
		return fmt.Errorf("%w: cannot invite yourself", domain.ErrInvalidRequest)
	}
	exists, err := r.identities.Exists(ctx, to)
	if err != nil {
		return err
	}
	if !exists {
		metrics.InvitesTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: recipient %s", domain.ErrNotFound, to)
	}

	created, err := r.invites.Create(ctx, from, to)
	if err != nil {
		return err
	}
	if !created {
		metrics.InvitesTotal.WithLabelValues("duplicate").Inc()
		slog.Debug("invite already exists", "from", from, "to", to)
		return nil
	}
	metrics.InvitesTotal.WithLabelValues("created").Inc()

	push(r.presence, to, event.Event{
		Type:    event.InviteReceived,
		Payload: event.InvitePayload{FromCode: from, ToCode: to},
	})
	return nil
}

// Accept marks the invite from → to accepted and forms the relationship.
// When pending invites are not required an accept without an invite still
// forms the relationship.
func (r *Relationships) Accept(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: fromCode and toCode are required", domain.ErrInvalidRequest)
	}
	matched, err := r.invites.Accept(ctx, from, to, r.now().UTC())
	if err != nil {
		return err
	}
	if matched == 0 && r.requireInvite {
		return fmt.Errorf("%w: no invite from %s to %s", domain.ErrNotFound, from, to)
	}

	created, err := r.relationships.Create(ctx, from, to)
	if err != nil {
		return err
	}
	if created {
		metrics.RelationshipsFormedTotal.WithLabelValues().Inc()
	}

	push(r.presence, from, event.Event{
		Type:    event.RelationshipFormed,
		Payload: event.RelationshipFormedPayload{PeerCode: to},
	})
	push(r.presence, to, event.Event{
		Type:    event.RelationshipFormed,
		Payload: event.RelationshipFormedPayload{PeerCode: from},
	})
	return nil
}

// AreRelated reports whether a and b share a relationship, in either order.
func (r *Relationships) AreRelated(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	return r.relationships.Exists(ctx, a, b)
}
