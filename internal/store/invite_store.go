package store

import (
	"context"
	"time"

	"relay/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InviteStore struct{ db *gorm.DB }

func (s *Store) Invites() *InviteStore { return &InviteStore{db: s.DB} }

// Create records a pending invite for the ordered pair. An existing invite for
// the same pair, pending or accepted, is left untouched and created is false.
func (i *InviteStore) Create(ctx context.Context, from, to string) (bool, error) {
	inv := domain.Invite{FromCode: from, ToCode: to, Status: domain.InvitePending}
	res := i.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&inv)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Accept flips the invite for the pair to accepted and returns how many rows
// matched. Accepting an already accepted invite still matches.
func (i *InviteStore) Accept(ctx context.Context, from, to string, at time.Time) (int64, error) {
	res := i.db.WithContext(ctx).Model(&domain.Invite{}).
		Where("from_code = ? AND to_code = ?", from, to).
		Updates(map[string]any{"status": domain.InviteAccepted, "accepted_at": at})
	return res.RowsAffected, translate(res.Error)
}
