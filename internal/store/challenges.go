package store

import (
	"context"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormChallengeStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ChallengeStore = (*GormChallengeStore)(nil)

func NewGormChallengeStore(db *gorm.DB) *GormChallengeStore {
	return &GormChallengeStore{db: db, now: time.Now}
}

// Create replaces any pending challenge of the same kind for the user.
func (s *GormChallengeStore) Create(ctx context.Context, userID uuid.UUID, kind models.ChallengeKind, challenge, sessionData string, ttl time.Duration) error {
	if !kind.Valid() {
		return apperr.Validation("unknown challenge kind")
	}
	now := s.now().UTC()
	row := models.WebAuthnChallenge{
		UserID:      userID,
		Kind:        kind,
		Challenge:   challenge,
		SessionData: sessionData,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"challenge", "session_data", "created_at", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return storageError("failed to save challenge", err)
	}
	return nil
}

func (s *GormChallengeStore) Latest(ctx context.Context, userID uuid.UUID, kind models.ChallengeKind) (*models.WebAuthnChallenge, error) {
	var row models.WebAuthnChallenge
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND expires_at > ?", userID, kind, s.now().UTC()).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrChallengeNotFound
		}
		return nil, storageError("failed to load challenge", err)
	}
	return &row, nil
}

// Consume deletes the challenge row. Only one caller can remove it; every
// later call gets ErrChallengeUsed.
func (s *GormChallengeStore) Consume(ctx context.Context, challenge string) error {
	result := s.db.WithContext(ctx).
		Where("challenge = ?", challenge).
		Delete(&models.WebAuthnChallenge{})
	if result.Error != nil {
		return storageError("failed to consume challenge", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrChallengeUsed
	}
	return nil
}

func (s *GormChallengeStore) SweepExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now().UTC()).
		Delete(&models.WebAuthnChallenge{})
	if result.Error != nil {
		return 0, storageError("failed to sweep challenges", result.Error)
	}
	return result.RowsAffected, nil
}
