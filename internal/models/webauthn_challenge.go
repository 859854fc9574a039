package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChallengeKind string

const (
	ChallengeRegistration   ChallengeKind = "registration"
	ChallengeAuthentication ChallengeKind = "authentication"
)

func (k ChallengeKind) Valid() bool {
	return k == ChallengeRegistration || k == ChallengeAuthentication
}

// WebAuthnChallenge holds one in-flight ceremony. The (user_id, kind) pair is
// unique, so starting a ceremony replaces any earlier challenge of that kind.
type WebAuthnChallenge struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_challenge_user_kind"`
	Kind        ChallengeKind `json:"kind" gorm:"type:varchar(20);not null;uniqueIndex:idx_challenge_user_kind"`
	Challenge   string        `json:"challenge" gorm:"type:varchar(255);uniqueIndex;not null"`
	SessionData string        `json:"-" gorm:"type:text;not null"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null"`
	ExpiresAt   time.Time     `json:"expires_at" gorm:"not null;index"`
}

func (WebAuthnChallenge) TableName() string {
	return "webauthn_challenges"
}

func (c *WebAuthnChallenge) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c WebAuthnChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
