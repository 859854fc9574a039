package store

import (
	"context"
	"errors"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormCredentialStore struct {
	db *gorm.DB
}

var _ CredentialStore = (*GormCredentialStore)(nil)

func NewGormCredentialStore(db *gorm.DB) *GormCredentialStore {
	return &GormCredentialStore{db: db}
}

func (s *GormCredentialStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.WebAuthnCredential, error) {
	var creds []models.WebAuthnCredential
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&creds).Error
	if err != nil {
		return nil, storageError("failed to list credentials", err)
	}
	return creds, nil
}

func (s *GormCredentialStore) FindByCredentialID(ctx context.Context, credentialID string, userID uuid.UUID) (*models.WebAuthnCredential, error) {
	var cred models.WebAuthnCredential
	err := s.db.WithContext(ctx).
		Where("credential_id = ? AND user_id = ?", credentialID, userID).
		First(&cred).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrCredentialNotFound
		}
		return nil, storageError("failed to load credential", err)
	}
	return &cred, nil
}

func (s *GormCredentialStore) FindOwner(ctx context.Context, credentialID string) (uuid.UUID, error) {
	var cred models.WebAuthnCredential
	err := s.db.WithContext(ctx).
		Select("user_id").
		Where("credential_id = ?", credentialID).
		First(&cred).Error
	if err != nil {
		if isNotFound(err) {
			return uuid.Nil, apperr.ErrCredentialNotFound
		}
		return uuid.Nil, storageError("failed to resolve credential owner", err)
	}
	return cred.UserID, nil
}

// Insert stores the credential and raises the owner's has_webauthn flag in
// the same transaction.
func (s *GormCredentialStore) Insert(ctx context.Context, cred *models.WebAuthnCredential) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cred).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", cred.UserID).
			Update("has_webauthn", true).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return apperr.ErrDuplicateCredential
		}
		return storageError("failed to save credential", err)
	}
	return nil
}

// UpdateCounter only writes when the stored counter still equals expected,
// so the second of two concurrent assertions with one credential fails.
func (s *GormCredentialStore) UpdateCounter(ctx context.Context, credentialID string, expected, next uint32, usedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.WebAuthnCredential{}).
		Where("credential_id = ? AND sign_count = ?", credentialID, expected).
		Updates(map[string]interface{}{
			"sign_count":   next,
			"last_used_at": usedAt.UTC(),
			"updated_at":   usedAt.UTC(),
		})
	if result.Error != nil {
		return storageError("failed to update signature counter", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.VerificationFailed("verification failed", errors.New("signature counter changed concurrently"))
	}
	return nil
}

func (s *GormCredentialStore) Rename(ctx context.Context, id, userID uuid.UUID, name string) (*models.WebAuthnCredential, error) {
	var cred models.WebAuthnCredential
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.WebAuthnCredential{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("friendly_name", name)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrNotFoundOrForbidden
		}
		return tx.First(&cred, "id = ?", id).Error
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		return nil, storageError("failed to rename credential", err)
	}
	return &cred, nil
}

// Delete removes the credential only when it belongs to userID and reports
// how many rows went away. The has_webauthn flag is cleared once the user has
// no credential left.
func (s *GormCredentialStore) Delete(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.WebAuthnCredential{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		if deleted == 0 {
			return nil
		}

		var remaining int64
		if err := tx.Model(&models.WebAuthnCredential{}).Where("user_id = ?", userID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("has_webauthn", false).Error
	})
	if err != nil {
		return 0, storageError("failed to delete credential", err)
	}
	return deleted, nil
}
