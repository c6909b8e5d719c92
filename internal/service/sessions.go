package service

import (
	"context"
	"fmt"
	"log/slog"

	"relay/internal/domain"
	"relay/internal/observability/metrics"
	"relay/internal/presence"
)

// TokenVerifier returns the access code a session token was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type RegisterInput struct {
	Code    string
	Profile domain.ProfileUpdate
	Token   string
}

// Sessions binds live connections to identities and releases them on
// disconnect.
type Sessions struct {
	identities   IdentityRepository
	presence     *presence.Registry
	tokens       TokenVerifier
	requireToken bool
}

func NewSessions(identities IdentityRepository, reg *presence.Registry, tokens TokenVerifier, requireToken bool) *Sessions {
	return &Sessions{
		identities:   identities,
		presence:     reg,
		tokens:       tokens,
		requireToken: requireToken,
	}
}

// Register applies the profile update and makes conn the live connection for
// the code. An earlier connection for the same code is displaced.
func (s *Sessions) Register(ctx context.Context, conn presence.Conn, in RegisterInput) (*domain.Identity, error) {
	if in.Code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidRequest)
	}
	if s.requireToken {
		if s.tokens == nil || in.Token == "" {
			return nil, fmt.Errorf("%w: session token required", domain.ErrUnauthorized)
		}
		sub, err := s.tokens.Verify(in.Token)
		if err != nil || sub != in.Code {
			return nil, fmt.Errorf("%w: session token does not match code", domain.ErrUnauthorized)
		}
	}

	id, err := s.identities.UpdateProfile(ctx, in.Code, in.Profile)
	if err != nil {
		return nil, err
	}

	if displaced := s.presence.Bind(in.Code, conn); displaced != nil {
		slog.Info("session replaced by newer registration", "code", in.Code)
	}
	metrics.PresenceBindings.WithLabelValues().Set(float64(s.presence.Count()))
	return id, nil
}

// Disconnect drops whatever binding conn holds. Safe to call for connections
// that never registered.
func (s *Sessions) Disconnect(conn presence.Conn) {
	if code, ok := s.presence.Unbind(conn); ok {
		slog.Debug("connection unbound", "code", code)
	}
	metrics.PresenceBindings.WithLabelValues().Set(float64(s.presence.Count()))
}

// Authorize checks that conn is registered as actingCode.
func (s *Sessions) Authorize(conn presence.Conn, actingCode string) error {
	code, ok := s.presence.CodeOf(conn)
	if !ok {
		return domain.ErrNotRegistered
	}
	if code != actingCode {
		return fmt.Errorf("%w: connection is registered as %s", domain.ErrForbidden, code)
	}
	return nil
}
