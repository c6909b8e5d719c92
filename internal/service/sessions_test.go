package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"relay/internal/domain"
	"relay/internal/jwtsigner"
	"relay/internal/presence"
)

func newTestSessions(t *testing.T, requireToken bool) (*Sessions, *presence.Registry, *jwtsigner.Signer) {
	t.Helper()
	st := setupStore(t)
	seedIdentity(t, st, alice)
	signer, err := jwtsigner.NewFromBase64("", "test", "relay")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	reg := presence.NewRegistry()
	return NewSessions(st.Identities(), reg, signer, requireToken), reg, signer
}

func strPtr(s string) *string { return &s }

func TestRegisterBindsAndUpdatesProfile(t *testing.T) {
	s, reg, _ := newTestSessions(t, false)
	conn := &recordingConn{}

	id, err := s.Register(context.Background(), conn, RegisterInput{
		Code:    alice,
		Profile: domain.ProfileUpdate{Name: strPtr("Alice"), Bio: strPtr("hi")},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id.Name != "Alice" || id.Bio != "hi" {
		t.Fatalf("profile not applied: %+v", id)
	}
	if got, ok := reg.Lookup(alice); !ok || got != conn {
		t.Fatalf("conn not bound")
	}
	if err := s.Authorize(conn, alice); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := s.Authorize(conn, bob); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRegisterUnknownCode(t *testing.T) {
	s, reg, _ := newTestSessions(t, false)
	conn := &recordingConn{}
	_, err := s.Register(context.Background(), conn, RegisterInput{Code: "ZZ-0000-0000"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if reg.Count() != 0 {
		t.Fatalf("unknown code must not bind")
	}
}

func TestRegisterLastWinsAndStaleDisconnect(t *testing.T) {
	s, reg, _ := newTestSessions(t, false)
	first, second := &recordingConn{}, &recordingConn{}
	ctx := context.Background()

	if _, err := s.Register(ctx, first, RegisterInput{Code: alice}); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if _, err := s.Register(ctx, second, RegisterInput{Code: alice}); err != nil {
		t.Fatalf("register second: %v", err)
	}
	s.Disconnect(first)
	if got, ok := reg.Lookup(alice); !ok || got != second {
		t.Fatalf("stale disconnect removed the newer binding")
	}
	if err := s.Authorize(first, alice); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("displaced conn should be unregistered, got %v", err)
	}
	s.Disconnect(second)
	if reg.Count() != 0 {
		t.Fatalf("registry not empty after disconnect")
	}
}

func TestRegisterRequiresMatchingToken(t *testing.T) {
	s, _, signer := newTestSessions(t, true)
	ctx := context.Background()

	if _, err := s.Register(ctx, &recordingConn{}, RegisterInput{Code: alice}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("missing token: %v", err)
	}
	other, _ := signer.Sign(bob, time.Hour)
	if _, err := s.Register(ctx, &recordingConn{}, RegisterInput{Code: alice, Token: other}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign token: %v", err)
	}
	tok, err := signer.Sign(alice, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Register(ctx, &recordingConn{}, RegisterInput{Code: alice, Token: tok}); err != nil {
		t.Fatalf("valid token: %v", err)
	}
}
