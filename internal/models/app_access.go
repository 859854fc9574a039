package models

import (
	"time"

	"github.com/google/uuid"
)

type AppAccess struct {
	BaseModel
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_app_access_user_app"`
	AppName    string    `json:"app_name" gorm:"type:varchar(100);not null;uniqueIndex:idx_app_access_user_app"`
	LastAccess time.Time `json:"last_access" gorm:"not null;index"`
}

func (AppAccess) TableName() string {
	return "app_access"
}
