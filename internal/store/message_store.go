package store

import (
	"context"
	"time"

	"relay/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return translate(m.db.WithContext(ctx).Create(msg).Error)
}

func (m *MessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := m.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&domain.Message{})
	return res.RowsAffected, translate(res.Error)
}
