package store

import (
	"context"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormAppAccessStore struct {
	db *gorm.DB
}

var _ AppAccessStore = (*GormAppAccessStore)(nil)

func NewGormAppAccessStore(db *gorm.DB) *GormAppAccessStore {
	return &GormAppAccessStore{db: db}
}

// Upsert records that userID used appName at the given time and returns the
// stored row.
func (s *GormAppAccessStore) Upsert(ctx context.Context, userID uuid.UUID, appName string, at time.Time) (*models.AppAccess, error) {
	at = at.UTC()
	var record models.AppAccess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.AppAccess{UserID: userID, AppName: appName, LastAccess: at}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "app_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_access", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ? AND app_name = ?", userID, appName).First(&record).Error
	})
	if err != nil {
		return nil, storageError("failed to record app access", err)
	}
	return &record, nil
}

func (s *GormAppAccessStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AppAccess, error) {
	var records []models.AppAccess
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_access DESC").
		Find(&records).Error
	if err != nil {
		return nil, storageError("failed to list app access", err)
	}
	return records, nil
}

func (s *GormAppAccessStore) Revoke(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.AppAccess{})
	if result.Error != nil {
		return 0, storageError("failed to revoke app access", result.Error)
	}
	return result.RowsAffected, nil
}
