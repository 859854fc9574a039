package models

// User is the identity-provider record the WebAuthn pathway is layered on.
// HasWebAuthn mirrors whether at least one credential row exists.
type User struct {
	BaseModel
	Email       string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName string `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
	HasWebAuthn bool   `json:"has_webauthn" gorm:"column:has_webauthn;not null;default:false"`
}
