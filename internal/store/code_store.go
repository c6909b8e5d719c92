package store

import (
	"context"
	"time"

	"relay/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CodeStore struct{ db *gorm.DB }

func (s *Store) Codes() *CodeStore { return &CodeStore{db: s.DB} }

// Upsert stores code as the only live code for its address and resets its
// attempt counter.
func (c *CodeStore) Upsert(ctx context.Context, code domain.OneTimeCode) error {
	reissue := clause.Assignments(map[string]any{
		"code_hash":  code.CodeHash,
		"attempts":   0,
		"expires_at": code.ExpiresAt,
		"issued_at":  code.IssuedAt,
	})
	return translate(c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: reissue,
		}).
		Create(&code).Error)
}

func (c *CodeStore) Get(ctx context.Context, address string) (*domain.OneTimeCode, error) {
	var code domain.OneTimeCode
	if err := c.db.WithContext(ctx).First(&code, "address = ?", address).Error; err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

// Consume deletes the code only if it is still the one identified by hash.
// It reports false when another request superseded or consumed it first.
func (c *CodeStore) Consume(ctx context.Context, address string, hash []byte) (bool, error) {
	res := c.db.WithContext(ctx).
		Where("address = ? AND code_hash = ?", address, hash).
		Delete(&domain.OneTimeCode{})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordFailure counts a wrong guess against the code identified by hash and
// deletes it once maxAttempts guesses have failed. It reports whether the code
// was burned. A non-positive maxAttempts only counts.
func (c *CodeStore) RecordFailure(ctx context.Context, address string, hash []byte, maxAttempts int) (bool, error) {
	burned := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.OneTimeCode{}).
			Where("address = ? AND code_hash = ?", address, hash).
			UpdateColumn("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil || res.RowsAffected == 0 || maxAttempts <= 0 {
			return res.Error
		}
		del := tx.Where("address = ? AND code_hash = ? AND attempts >= ?", address, hash, maxAttempts).
			Delete(&domain.OneTimeCode{})
		burned = del.RowsAffected > 0
		return del.Error
	})
	if err != nil {
		return false, translate(err)
	}
	return burned, nil
}

func (c *CodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.OneTimeCode{})
	return res.RowsAffected, translate(res.Error)
}
