package store

import (
	"context"

	"relay/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RelationshipStore struct{ db *gorm.DB }

func (s *Store) Relationships() *RelationshipStore { return &RelationshipStore{db: s.DB} }

// Create inserts the relationship for the unordered pair. The unique index on
// the normalized pair makes concurrent calls produce a single row.
func (r *RelationshipStore) Create(ctx context.Context, a, b string) (bool, error) {
	rel := domain.NewRelationship(a, b)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rel)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *RelationshipStore) Exists(ctx context.Context, a, b string) (bool, error) {
	rel := domain.NewRelationship(a, b)
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Relationship{}).
		Where("code_a = ? AND code_b = ?", rel.CodeA, rel.CodeB).
		Count(&n).Error
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}
