package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/appverse/authapi/internal/identity"
	"github.com/appverse/authapi/internal/metrics"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/apptoken"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/google/uuid"
)

type AppTokenService struct {
	Signer    *apptoken.Signer
	Access    store.AppAccessStore
	Directory identity.Directory
	Sessions  identity.SessionIssuer
	Verifier  identity.TokenVerifier
	TokenTTL  time.Duration
	allowed   map[string]struct{}
	now       func() time.Time
}

func NewAppTokenService(
	signer *apptoken.Signer,
	access store.AppAccessStore,
	directory identity.Directory,
	sessions identity.SessionIssuer,
	verifier identity.TokenVerifier,
	allowedApps []string,
	ttl time.Duration,
) *AppTokenService {
	allowed := make(map[string]struct{}, len(allowedApps))
	for _, name := range allowedApps {
		allowed[name] = struct{}{}
	}
	return &AppTokenService{
		Signer:    signer,
		Access:    access,
		Directory: directory,
		Sessions:  sessions,
		Verifier:  verifier,
		TokenTTL:  ttl,
		allowed:   allowed,
		now:       time.Now,
	}
}

type GeneratedAppToken struct {
	AppToken  string `json:"app_token"`
	ExpiresIn int64  `json:"expires_in"`
}

type AppAuthorization struct {
	Authorized bool      `json:"authorized"`
	AppName    string    `json:"app_name"`
	UserID     uuid.UUID `json:"user_id"`
}

type AppRevocation struct {
	Revoked     bool      `json:"revoked"`
	AppAccessID uuid.UUID `json:"app_access_id"`
}

type TokenStatus struct {
	Valid  bool       `json:"valid"`
	UserID *uuid.UUID `json:"user_id"`
}

func (s *AppTokenService) checkApp(appName string) error {
	if appName == "" {
		return apperr.Validation("app_name is required")
	}
	if _, ok := s.allowed[appName]; !ok {
		return apperr.ErrUnknownApplication
	}
	return nil
}

// Generate records the app as authorized for user and returns a signed
// token the app can later exchange for a session.
func (s *AppTokenService) Generate(ctx context.Context, user *models.User, appName string) (*GeneratedAppToken, error) {
	out, err := s.generate(ctx, user, strings.TrimSpace(appName))
	metrics.AppTokens.WithLabelValues("generate", metrics.Outcome(err)).Inc()
	return out, err
}

func (s *AppTokenService) generate(ctx context.Context, user *models.User, appName string) (*GeneratedAppToken, error) {
	if err := s.checkApp(appName); err != nil {
		return nil, err
	}
	now := s.now()
	if _, err := s.Access.Upsert(ctx, user.ID, appName, now); err != nil {
		return nil, err
	}

	token, _, err := s.Signer.Generate(user.ID, appName, s.TokenTTL)
	if err != nil {
		return nil, apperr.Internal("failed to sign application token", err)
	}

	logger.InfoWithUser(user.ID.String(), "app_token_generated", map[string]interface{}{
		"app_name": appName,
	})
	return &GeneratedAppToken{
		AppToken:  token,
		ExpiresIn: int64(s.TokenTTL / time.Second),
	}, nil
}

// Exchange turns a valid application token into a full session for its
// user. The token must have been issued for appName.
func (s *AppTokenService) Exchange(ctx context.Context, appToken, appName string) (utils.SessionTokens, error) {
	tokens, err := s.exchange(ctx, strings.TrimSpace(appToken), strings.TrimSpace(appName))
	metrics.AppTokens.WithLabelValues("exchange", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warn("app_token_exchange_failed", map[string]interface{}{
			"app_name":   appName,
			"kind":       string(apperr.KindOf(err)),
			"diagnostic": apperr.Diagnostic(err),
		})
	}
	return tokens, err
}

func (s *AppTokenService) exchange(ctx context.Context, appToken, appName string) (utils.SessionTokens, error) {
	if appToken == "" || appName == "" {
		return utils.SessionTokens{}, apperr.Validation("app_token and app_name are required")
	}

	claims, err := s.Signer.Parse(appToken)
	if err != nil {
		return utils.SessionTokens{}, apperr.Wrap(apperr.KindInvalidApplicationToken, "invalid application token", err)
	}
	if claims.AppName != appName {
		return utils.SessionTokens{}, apperr.Wrap(apperr.KindInvalidApplicationToken, "invalid application token", errors.New("token was issued for another application"))
	}

	user, err := s.Directory.FindByID(ctx, claims.UserID)
	if err != nil {
		return utils.SessionTokens{}, err
	}
	if _, err := s.Access.Upsert(ctx, user.ID, appName, s.now()); err != nil {
		return utils.SessionTokens{}, err
	}

	tokens, err := s.Sessions.IssueSession(ctx, user)
	if err != nil {
		return utils.SessionTokens{}, err
	}

	logger.InfoWithUser(user.ID.String(), "app_token_exchanged", map[string]interface{}{
		"app_name": appName,
		"jti":      claims.ID,
	})
	return tokens, nil
}

func (s *AppTokenService) Authorize(ctx context.Context, user *models.User, appName string) (*AppAuthorization, error) {
	appName = strings.TrimSpace(appName)
	if err := s.checkApp(appName); err != nil {
		return nil, err
	}
	if _, err := s.Access.Upsert(ctx, user.ID, appName, s.now()); err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "app_authorized", map[string]interface{}{
		"app_name": appName,
	})
	return &AppAuthorization{Authorized: true, AppName: appName, UserID: user.ID}, nil
}

func (s *AppTokenService) ListApps(ctx context.Context, user *models.User) ([]models.AppAccess, error) {
	records, err := s.Access.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.AppAccess{}
	}
	return records, nil
}

func (s *AppTokenService) Revoke(ctx context.Context, user *models.User, accessID uuid.UUID) (*AppRevocation, error) {
	revoked, err := s.Access.Revoke(ctx, accessID, user.ID)
	if err != nil {
		return nil, err
	}
	if revoked == 0 {
		return nil, apperr.ErrAppAccessNotFound
	}

	logger.InfoWithUser(user.ID.String(), "app_access_revoked", map[string]interface{}{
		"app_access_id": accessID.String(),
	})
	return &AppRevocation{Revoked: true, AppAccessID: accessID}, nil
}

// VerifyToken reports whether token is a live access token. An invalid token
// is a normal answer, not an error.
func (s *AppTokenService) VerifyToken(ctx context.Context, token string) TokenStatus {
	userID, err := s.Verifier.VerifyAccessToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return TokenStatus{Valid: false}
	}
	return TokenStatus{Valid: true, UserID: &userID}
}
