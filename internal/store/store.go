// Package store persists ceremony state: pending challenges, registered
// credentials and application access records. Every method takes the request
// context and translates driver errors into apperr kinds.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChallengeStore interface {
	Create(ctx context.Context, userID uuid.UUID, kind models.ChallengeKind, challenge, sessionData string, ttl time.Duration) error
	Latest(ctx context.Context, userID uuid.UUID, kind models.ChallengeKind) (*models.WebAuthnChallenge, error)
	Consume(ctx context.Context, challenge string) error
	SweepExpired(ctx context.Context) (int64, error)
}

type CredentialStore interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.WebAuthnCredential, error)
	FindByCredentialID(ctx context.Context, credentialID string, userID uuid.UUID) (*models.WebAuthnCredential, error)
	FindOwner(ctx context.Context, credentialID string) (uuid.UUID, error)
	Insert(ctx context.Context, cred *models.WebAuthnCredential) error
	UpdateCounter(ctx context.Context, credentialID string, expected, next uint32, usedAt time.Time) error
	Rename(ctx context.Context, id, userID uuid.UUID, name string) (*models.WebAuthnCredential, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (int64, error)
}

type AppAccessStore interface {
	Upsert(ctx context.Context, userID uuid.UUID, appName string, at time.Time) (*models.AppAccess, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AppAccess, error)
	Revoke(ctx context.Context, id, userID uuid.UUID) (int64, error)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate recognises unique violations from both drivers, whether or not
// gorm's error translation is enabled on the connection.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func storageError(message string, err error) error {
	return apperr.Storage(message, err)
}
