package service

import (
	"context"
	"time"

	"relay/internal/domain"
)

type IdentityRepository interface {
	Create(ctx context.Context, id *domain.Identity) error
	GetByCode(ctx context.Context, code string) (*domain.Identity, error)
	GetByAddress(ctx context.Context, address string) (*domain.Identity, error)
	Exists(ctx context.Context, code string) (bool, error)
	MarkVerified(ctx context.Context, code string, at time.Time) error
	UpdateProfile(ctx context.Context, code string, upd domain.ProfileUpdate) (*domain.Identity, error)
}

type CodeRepository interface {
	Upsert(ctx context.Context, code domain.OneTimeCode) error
	Get(ctx context.Context, address string) (*domain.OneTimeCode, error)
	Consume(ctx context.Context, address string, hash []byte) (bool, error)
	RecordFailure(ctx context.Context, address string, hash []byte, maxAttempts int) (bool, error)
}

type InviteRepository interface {
	Create(ctx context.Context, from, to string) (bool, error)
	Accept(ctx context.Context, from, to string, at time.Time) (int64, error)
}

type RelationshipRepository interface {
	Create(ctx context.Context, a, b string) (bool, error)
	Exists(ctx context.Context, a, b string) (bool, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
}
