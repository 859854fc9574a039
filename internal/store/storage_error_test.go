package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func TestStoresReportStorageErrors(t *testing.T) {
	ctx := context.Background()
	connErr := errors.New("connection reset by peer")

	t.Run("credential list", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "webauthn_credentials"`).WillReturnError(connErr)

		_, err := NewGormCredentialStore(db).ListForUser(ctx, uuid.New())
		if !apperr.Is(err, apperr.KindStorage) {
			t.Fatalf("expected storage error, got %v", err)
		}
		if apperr.PublicMessage(err) != "storage error" {
			t.Fatalf("expected cause to stay private, got %q", apperr.PublicMessage(err))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("counter update", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "webauthn_credentials"`).WillReturnError(connErr)
		mock.ExpectRollback()

		err := NewGormCredentialStore(db).UpdateCounter(ctx, "cred", 1, 2, time.Now())
		if !apperr.Is(err, apperr.KindStorage) {
			t.Fatalf("expected storage error, got %v", err)
		}
	})

	t.Run("challenge lookup", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "webauthn_challenges"`).WillReturnError(connErr)

		_, err := NewGormChallengeStore(db).Latest(ctx, uuid.New(), models.ChallengeAuthentication)
		if !apperr.Is(err, apperr.KindStorage) {
			t.Fatalf("expected storage error, got %v", err)
		}
	})

	t.Run("challenge consume with no row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "webauthn_challenges"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := NewGormChallengeStore(db).Consume(ctx, "gone")
		if err != apperr.ErrChallengeUsed {
			t.Fatalf("expected ErrChallengeUsed, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("credential delete rolls back", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "webauthn_credentials"`).WillReturnError(connErr)
		mock.ExpectRollback()

		deleted, err := NewGormCredentialStore(db).Delete(ctx, uuid.New(), uuid.New())
		if deleted != 0 || !apperr.Is(err, apperr.KindStorage) {
			t.Fatalf("expected (0, storage error), got (%d, %v)", deleted, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}
