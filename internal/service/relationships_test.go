package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"relay/internal/domain"
	"relay/internal/event"
	"relay/internal/presence"
	"relay/internal/store"
)

const (
	alice = "AL-1111-1111"
	bob   = "BO-2222-2222"
	carol = "CA-3333-3333"
)

func newTestRelationships(t *testing.T, requireInvite bool) (*Relationships, *store.Store, *presence.Registry) {
	t.Helper()
	st := setupStore(t)
	seedIdentity(t, st, alice)
	seedIdentity(t, st, bob)
	seedIdentity(t, st, carol)
	reg := presence.NewRegistry()
	return NewRelationships(st.Identities(), st.Invites(), st.Relationships(), reg, requireInvite), st, reg
}

func TestInviteUnknownRecipient(t *testing.T) {
	r, st, _ := newTestRelationships(t, true)
	err := r.Invite(context.Background(), alice, "ZZ-9999-9999")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var n int64
	st.DB.Model(&domain.Invite{}).Count(&n)
	if n != 0 {
		t.Fatalf("invite row written for unknown recipient")
	}
}

func TestInviteRejectsSelf(t *testing.T) {
	r, _, _ := newTestRelationships(t, true)
	if err := r.Invite(context.Background(), alice, alice); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestInvitePushesToOnlineRecipient(t *testing.T) {
	r, _, reg := newTestRelationships(t, true)
	bobConn := &recordingConn{}
	reg.Bind(bob, bobConn)

	if err := r.Invite(context.Background(), alice, bob); err != nil {
		t.Fatalf("invite: %v", err)
	}
	evs := bobConn.Events()
	if len(evs) != 1 || evs[0].Type != event.InviteReceived {
		t.Fatalf("bob events = %+v", evs)
	}
	p := evs[0].Payload.(event.InvitePayload)
	if p.FromCode != alice || p.ToCode != bob {
		t.Fatalf("payload = %+v", p)
	}

	// Repeat invites are absorbed without a second notification.
	if err := r.Invite(context.Background(), alice, bob); err != nil {
		t.Fatalf("repeat invite: %v", err)
	}
	if got := bobConn.count(event.InviteReceived); got != 1 {
		t.Fatalf("inviteReceived pushed %d times", got)
	}
}

func TestConcurrentInvitesWriteOneRow(t *testing.T) {
	r, st, _ := newTestRelationships(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Invite(context.Background(), alice, bob); err != nil {
				t.Errorf("invite: %v", err)
			}
		}()
	}
	wg.Wait()

	var n int64
	st.DB.Model(&domain.Invite{}).Where("from_code = ? AND to_code = ?", alice, bob).Count(&n)
	if n != 1 {
		t.Fatalf("expected one invite row, got %d", n)
	}
}

func TestAcceptFormsSymmetricRelationship(t *testing.T) {
	r, _, reg := newTestRelationships(t, true)
	ctx := context.Background()
	aliceConn, bobConn := &recordingConn{}, &recordingConn{}
	reg.Bind(alice, aliceConn)
	reg.Bind(bob, bobConn)

	if err := r.Invite(ctx, alice, bob); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := r.Accept(ctx, alice, bob); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, pair := range [][2]string{{alice, bob}, {bob, alice}} {
		ok, err := r.AreRelated(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Fatalf("AreRelated(%s, %s) = %v, %v", pair[0], pair[1], ok, err)
		}
	}
	if ok, _ := r.AreRelated(ctx, alice, carol); ok {
		t.Fatalf("alice and carol should not be related")
	}

	if aliceConn.count(event.RelationshipFormed) != 1 || bobConn.count(event.RelationshipFormed) != 1 {
		t.Fatalf("both parties should hear relationshipFormed once")
	}
	for _, ev := range aliceConn.Events() {
		if ev.Type == event.RelationshipFormed && ev.Payload.(event.RelationshipFormedPayload).PeerCode != bob {
			t.Fatalf("alice got wrong peer: %+v", ev.Payload)
		}
	}
}

func TestAcceptTwiceKeepsOneRelationship(t *testing.T) {
	r, st, _ := newTestRelationships(t, true)
	ctx := context.Background()
	if err := r.Invite(ctx, alice, bob); err != nil {
		t.Fatalf("invite: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := r.Accept(ctx, alice, bob); err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
	}
	var n int64
	st.DB.Model(&domain.Relationship{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one relationship row, got %d", n)
	}
}

func TestAcceptWithoutInvite(t *testing.T) {
	ctx := context.Background()

	strict, _, _ := newTestRelationships(t, true)
	if err := strict.Accept(ctx, alice, bob); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := strict.AreRelated(ctx, alice, bob); ok {
		t.Fatalf("relationship formed without invite")
	}

	lenient, _, _ := newTestRelationships(t, false)
	if err := lenient.Accept(ctx, alice, bob); err != nil {
		t.Fatalf("lenient accept: %v", err)
	}
	if ok, _ := lenient.AreRelated(ctx, alice, bob); !ok {
		t.Fatalf("lenient accept should relate the pair")
	}
}
