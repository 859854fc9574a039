package models

import (
	"time"

	"github.com/google/uuid"
)

type WebAuthnCredential struct {
	BaseModel
	UserID          uuid.UUID  `json:"user_id" gorm:"type:uuid;index;not null"`
	CredentialID    string     `json:"credential_id" gorm:"type:varchar(1024);uniqueIndex;not null"`
	PublicKey       []byte     `json:"-" gorm:"not null"`
	AttestationType string     `json:"-" gorm:"type:varchar(64)"`
	AAGUID          []byte     `json:"-"`
	SignCount       uint32     `json:"sign_count" gorm:"not null;default:0"`
	FriendlyName    string     `json:"friendly_name" gorm:"type:varchar(255);not null"`
	Transports      []string   `json:"transports" gorm:"type:text;serializer:json"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	BackupEligible  bool       `json:"backup_eligible" gorm:"not null;default:false"`
	BackupState     bool       `json:"backup_state" gorm:"not null;default:false"`
}

func (WebAuthnCredential) TableName() string {
	return "webauthn_credentials"
}

// CredentialSummary is the shape returned by the credential listing route.
type CredentialSummary struct {
	ID           uuid.UUID  `json:"id"`
	CredentialID string     `json:"credential_id"`
	FriendlyName string     `json:"friendly_name"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	Transports   []string   `json:"transports"`
}

func (c WebAuthnCredential) Summary() CredentialSummary {
	transports := c.Transports
	if transports == nil {
		transports = []string{}
	}
	return CredentialSummary{
		ID:           c.ID,
		CredentialID: c.CredentialID,
		FriendlyName: c.FriendlyName,
		CreatedAt:    c.CreatedAt,
		LastUsedAt:   c.LastUsedAt,
		Transports:   transports,
	}
}
