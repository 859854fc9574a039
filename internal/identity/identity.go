// Package identity is the narrow boundary to the primary identity provider:
// the user directory, session minting and bearer-token verification. The
// ceremonies hold these capabilities as interfaces so the privilege to mint
// a session for any user stays explicit.
package identity

import (
	"context"
	"strings"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Directory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type SessionIssuer interface {
	IssueSession(ctx context.Context, user *models.User) (utils.SessionTokens, error)
}

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (uuid.UUID, error)
}

// Provider serves all three capabilities from the users table and the
// service's own session JWTs.
type Provider struct {
	db *gorm.DB
}

var (
	_ Directory     = (*Provider)(nil)
	_ SessionIssuer = (*Provider)(nil)
	_ TokenVerifier = (*Provider)(nil)
)

func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	return p.result(&user, err)
}

func (p *Provider) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).First(&user, "id = ?", id).Error
	return p.result(&user, err)
}

func (p *Provider) result(user *models.User, err error) (*models.User, error) {
	if err == nil {
		return user, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.ErrUserNotFound
	}
	return nil, apperr.Storage("failed to load user", err)
}

func (p *Provider) IssueSession(_ context.Context, user *models.User) (utils.SessionTokens, error) {
	tokens, err := utils.GenerateSessionTokens(user)
	if err != nil {
		return utils.SessionTokens{}, apperr.Internal("failed to issue session", err)
	}
	return tokens, nil
}

func (p *Provider) VerifyAccessToken(_ context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apperr.ErrUnauthenticated
	}
	claims, err := utils.ValidateAccessToken(token)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindUnauthenticated, "unauthorized", err)
	}
	return claims.UserID, nil
}
