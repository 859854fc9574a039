package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog records one security-relevant ceremony or token event. Rows are
// append-only, so they carry no UpdatedAt.
type AuditLog struct {
	ID        uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    *uuid.UUID             `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Action    string                 `json:"action" gorm:"type:varchar(50);not null;index"`
	Outcome   string                 `json:"outcome" gorm:"type:varchar(10);not null"`
	Details   map[string]interface{} `json:"details,omitempty" gorm:"type:text;serializer:json"`
	IPAddress string                 `json:"ip_address" gorm:"type:varchar(45);not null;default:''"`
	RequestID string                 `json:"request_id,omitempty" gorm:"type:varchar(36)"`
	CreatedAt time.Time              `json:"created_at" gorm:"not null;index"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditExportCursor remembers how far the object-storage export has shipped.
type AuditExportCursor struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LastExportAt  time.Time `json:"last_export_at" gorm:"not null"`
	ExportedCount int64     `json:"exported_count" gorm:"not null;default:0"`
}

func (a *AuditExportCursor) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (AuditExportCursor) TableName() string {
	return "audit_export_cursors"
}
