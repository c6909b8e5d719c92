package jwtsigner

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	s, err := NewFromBase64("", "kid-1", "relay")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tok, err := s.Sign("ZT-1111-2222", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sub, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "ZT-1111-2222" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	s, _ := NewFromBase64("", "kid-1", "relay")
	tok, err := s.Sign("ZT-1111-2222", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := s.Verify(tok); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	other, _ := NewFromBase64("", "kid-2", "relay")
	foreign, _ := other.Sign("ZT-1111-2222", time.Hour)
	s.now = time.Now
	if _, err := s.Verify(foreign); err == nil {
		t.Fatalf("expected token from another key to fail")
	}
}

func TestNewFromBase64(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s, err := NewFromBase64(base64.StdEncoding.EncodeToString(priv), "kid", "relay")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.PublicJWK()["x"] != base64.RawURLEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)) {
		t.Fatalf("jwk does not expose the configured key")
	}
	if _, err := NewFromBase64(base64.StdEncoding.EncodeToString([]byte("short")), "kid", "relay"); err == nil {
		t.Fatalf("expected size error")
	}
}
