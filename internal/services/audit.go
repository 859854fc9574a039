package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

const (
	AuditPasskeyRegistered = "webauthn.credential_registered"
	AuditPasskeyRenamed    = "webauthn.credential_renamed"
	AuditPasskeyRemoved    = "webauthn.credential_removed"
	AuditPasskeyLogin      = "webauthn.login"
	AuditAppTokenIssued    = "app.token_issued"
	AuditAppTokenExchanged = "app.token_exchanged"
	AuditAppAuthorized     = "app.authorized"
	AuditAppRevoked        = "app.revoked"
)

type AuditEntry struct {
	UserID    *uuid.UUID
	Action    string
	Outcome   string
	Details   map[string]interface{}
	IPAddress string
	RequestID string
}

// ObjectUploader is the object-storage capability the exporter needs.
type ObjectUploader interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
}

type AuditService struct {
	DB      *gorm.DB
	Storage ObjectUploader
	queue   chan models.AuditLog
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

func NewAuditService(db *gorm.DB, uploader ObjectUploader) *AuditService {
	s := &AuditService{
		DB:      db,
		Storage: uploader,
		queue:   make(chan models.AuditLog, 1000),
		done:    make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// LogAsync queues an entry without blocking the request. Entries are dropped
// with a warning when the queue is full.
func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}
	outcome := entry.Outcome
	if outcome == "" {
		outcome = AuditOutcomeSuccess
	}
	row := models.AuditLog{
		UserID:    entry.UserID,
		Action:    entry.Action,
		Outcome:   outcome,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		RequestID: entry.RequestID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.Warn("audit_queue_closed", map[string]interface{}{"action": entry.Action})
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// Close stops accepting entries and waits until the queue is written.
func (s *AuditService) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

// StartExporter ships new audit rows to object storage as NDJSON every
// interval until ctx is cancelled. It does nothing without a storage client.
func (s *AuditService) StartExporter(ctx context.Context, interval time.Duration) {
	if s.Storage == nil {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExportOnce(ctx); err != nil {
					logger.Error("audit_export_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

// ExportOnce uploads rows created since the last export and advances the
// cursor. It returns the number of exported rows.
func (s *AuditService) ExportOnce(ctx context.Context) (int, error) {
	if s.Storage == nil {
		return 0, errors.New("audit export storage not configured")
	}

	db := s.DB.WithContext(ctx)

	var cursor models.AuditExportCursor
	if err := db.First(&cursor).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("load export cursor: %w", err)
		}
		cursor = models.AuditExportCursor{
			LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := db.Create(&cursor).Error; err != nil {
			return 0, fmt.Errorf("create export cursor: %w", err)
		}
	}

	var logs []models.AuditLog
	if err := db.Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		return 0, fmt.Errorf("query audit logs: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, log := range logs {
		if err := enc.Encode(log); err != nil {
			return 0, fmt.Errorf("encode audit log %s: %w", log.ID, err)
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("audit-logs/%s/%s.ndjson",
		now.Format("2006/01/02"),
		now.Format("15-04-05.000"),
	)
	if err := s.Storage.Upload(ctx, objectName, &buf, int64(buf.Len()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("upload %s: %w", objectName, err)
	}

	lastCreatedAt := logs[len(logs)-1].CreatedAt
	if err := db.Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	}).Error; err != nil {
		return 0, fmt.Errorf("advance export cursor: %w", err)
	}

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
	return len(logs), nil
}
