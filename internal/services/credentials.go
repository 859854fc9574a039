package services

import (
	"context"
	"strings"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/google/uuid"
)

const maxFriendlyNameLength = 255

type CredentialService struct {
	Credentials store.CredentialStore
}

func NewCredentialService(credentials store.CredentialStore) *CredentialService {
	return &CredentialService{Credentials: credentials}
}

func (s *CredentialService) List(ctx context.Context, userID uuid.UUID) ([]models.CredentialSummary, error) {
	creds, err := s.Credentials.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.CredentialSummary, 0, len(creds))
	for _, c := range creds {
		summaries = append(summaries, c.Summary())
	}
	return summaries, nil
}

func (s *CredentialService) Rename(ctx context.Context, userID, credentialID uuid.UUID, name string) (*models.CredentialSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("friendly_name is required")
	}
	if len(name) > maxFriendlyNameLength {
		return nil, apperr.Validation("friendly_name is too long")
	}

	cred, err := s.Credentials.Rename(ctx, credentialID, userID, name)
	if err != nil {
		return nil, err
	}
	summary := cred.Summary()
	return &summary, nil
}

// Delete removes a credential the caller owns. Missing and foreign
// credentials are reported the same way.
func (s *CredentialService) Delete(ctx context.Context, userID, credentialID uuid.UUID) error {
	deleted, err := s.Credentials.Delete(ctx, credentialID, userID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return apperr.ErrNotFoundOrForbidden
	}

	logger.InfoWithUser(userID.String(), "webauthn_credential_deleted", map[string]interface{}{
		"credential_id": credentialID.String(),
	})
	return nil
}
