package domain

import (
	"time"

	"github.com/google/uuid"
)

type Identity struct {
	AccessCode string    `gorm:"type:varchar(12);primaryKey" json:"code"`
	Name       string    `gorm:"type:varchar(64);not null;default:''" json:"name"`
	Bio        string    `gorm:"type:text;not null;default:''" json:"bio"`
	Address    string    `gorm:"type:varchar(254);not null;uniqueIndex:ux_identities_address" json:"address"`
	VerifiedAt time.Time `gorm:"not null" json:"verifiedAt"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

func (Identity) TableName() string { return "identities" }

// OneTimeCode holds the latest verification code issued for an address. Only a
// bcrypt hash of the code is stored. Attempts counts wrong guesses against it.
type OneTimeCode struct {
	Address   string    `gorm:"type:varchar(254);primaryKey"`
	CodeHash  []byte    `gorm:"not null"`
	Attempts  int       `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"not null;index"`
	IssuedAt  time.Time `gorm:"not null"`
}

func (OneTimeCode) TableName() string { return "one_time_codes" }

// Valid reports whether the code may still be redeemed at now.
func (c OneTimeCode) Valid(now time.Time) bool { return now.Before(c.ExpiresAt) }

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
)

type Invite struct {
	ID         uint         `gorm:"primaryKey"`
	FromCode   string       `gorm:"type:varchar(12);not null;uniqueIndex:ux_invites_pair,priority:1"`
	ToCode     string       `gorm:"type:varchar(12);not null;uniqueIndex:ux_invites_pair,priority:2;index"`
	Status     InviteStatus `gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt  time.Time    `gorm:"not null;autoCreateTime"`
	AcceptedAt *time.Time
}

func (Invite) TableName() string { return "invites" }

// Relationship is stored with CodeA < CodeB so one row covers both orderings.
type Relationship struct {
	ID        uint      `gorm:"primaryKey"`
	CodeA     string    `gorm:"type:varchar(12);not null;uniqueIndex:ux_relationships_pair,priority:1"`
	CodeB     string    `gorm:"type:varchar(12);not null;uniqueIndex:ux_relationships_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (Relationship) TableName() string { return "relationships" }

// NewRelationship orders the pair so that either argument order yields the same row.
func NewRelationship(a, b string) Relationship {
	if b < a {
		a, b = b, a
	}
	return Relationship{CodeA: a, CodeB: b}
}

type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FromCode  string     `gorm:"type:varchar(12);not null;index" json:"fromCode"`
	ToCode    string     `gorm:"type:varchar(12);not null;index:idx_messages_to_created,priority:1" json:"toCode"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	TTL       int        `gorm:"not null;default:0" json:"ttl"`
	CreatedAt time.Time  `gorm:"not null;index:idx_messages_to_created,priority:2" json:"createdAt"`
	ExpiresAt *time.Time `gorm:"index" json:"expiresAt,omitempty"`
}

func (Message) TableName() string { return "messages" }

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{&Identity{}, &OneTimeCode{}, &Invite{}, &Relationship{}, &Message{}}
}

// ProfileUpdate carries the profile fields a client asked to change. Nil
// fields are left as they are.
type ProfileUpdate struct {
	Name *string
	Bio  *string
}
