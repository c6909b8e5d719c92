package store

import (
	"context"
	"time"

	"relay/internal/domain"

	"gorm.io/gorm"
)

type IdentityStore struct{ db *gorm.DB }

func (s *Store) Identities() *IdentityStore { return &IdentityStore{db: s.DB} }

// Create inserts a new identity. A clash on the access code or the address
// returns domain.ErrConflict.
func (i *IdentityStore) Create(ctx context.Context, id *domain.Identity) error {
	return translate(i.db.WithContext(ctx).Create(id).Error)
}

func (i *IdentityStore) GetByCode(ctx context.Context, code string) (*domain.Identity, error) {
	var id domain.Identity
	if err := i.db.WithContext(ctx).First(&id, "access_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &id, nil
}

func (i *IdentityStore) GetByAddress(ctx context.Context, address string) (*domain.Identity, error) {
	var id domain.Identity
	if err := i.db.WithContext(ctx).First(&id, "address = ?", address).Error; err != nil {
		return nil, translate(err)
	}
	return &id, nil
}

func (i *IdentityStore) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := i.db.WithContext(ctx).Model(&domain.Identity{}).Where("access_code = ?", code).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (i *IdentityStore) MarkVerified(ctx context.Context, code string, at time.Time) error {
	return translate(i.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("access_code = ?", code).
		Update("verified_at", at).Error)
}

func (i *IdentityStore) UpdateProfile(ctx context.Context, code string, upd domain.ProfileUpdate) (*domain.Identity, error) {
	fields := map[string]any{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Bio != nil {
		fields["bio"] = *upd.Bio
	}
	if len(fields) == 0 {
		return i.GetByCode(ctx, code)
	}
	res := i.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("access_code = ?", code).
		Updates(fields)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return i.GetByCode(ctx, code)
}
