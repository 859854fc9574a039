package store

import (
	"testing"
	"time"

	"github.com/appverse/authapi/internal/database"
	"github.com/appverse/authapi/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	user := models.User{Email: email, DisplayName: "Test User"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func newCredential(userID uuid.UUID, credentialID string, signCount uint32) *models.WebAuthnCredential {
	return &models.WebAuthnCredential{
		UserID:       userID,
		CredentialID: credentialID,
		PublicKey:    []byte{0xa5, 0x01, 0x02},
		SignCount:    signCount,
		FriendlyName: "Passkey",
		Transports:   []string{"internal", "hybrid"},
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
