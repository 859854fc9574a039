package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/appverse/authapi/internal/identity"
	"github.com/appverse/authapi/internal/metrics"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

var errCounterRegression = errors.New("signature counter did not increase, the authenticator may be cloned")

type AuthenticationService struct {
	WebAuthn     *webauthn.WebAuthn
	Challenges   store.ChallengeStore
	Credentials  store.CredentialStore
	Directory    identity.Directory
	Sessions     identity.SessionIssuer
	ChallengeTTL time.Duration
	now          func() time.Time
}

func NewAuthenticationService(
	wa *webauthn.WebAuthn,
	challenges store.ChallengeStore,
	credentials store.CredentialStore,
	directory identity.Directory,
	sessions identity.SessionIssuer,
	ttl time.Duration,
) *AuthenticationService {
	return &AuthenticationService{
		WebAuthn:     wa,
		Challenges:   challenges,
		Credentials:  credentials,
		Directory:    directory,
		Sessions:     sessions,
		ChallengeTTL: ttl,
		now:          time.Now,
	}
}

type LoginResult struct {
	Verified     bool      `json:"verified"`
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Start resolves the user by email and issues request options. A user
// without credentials gets an empty allow list so a discoverable credential
// can still answer.
func (s *AuthenticationService) Start(ctx context.Context, email string) (*protocol.PublicKeyCredentialRequestOptions, error) {
	options, err := s.start(ctx, email)
	metrics.Ceremonies.WithLabelValues("authentication", "start", metrics.Outcome(err)).Inc()
	return options, err
}

func (s *AuthenticationService) start(ctx context.Context, email string) (*protocol.PublicKeyCredentialRequestOptions, error) {
	if identity.NormalizeEmail(email) == "" {
		return nil, apperr.Validation("email is required")
	}

	user, err := s.Directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	stored, err := s.Credentials.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	waUser, err := newWebAuthnUser(user, stored)
	if err != nil {
		return nil, err
	}

	var (
		options *protocol.CredentialAssertion
		session *webauthn.SessionData
	)
	if len(stored) == 0 {
		options, session, err = s.WebAuthn.BeginDiscoverableLogin(
			webauthn.WithUserVerification(protocol.VerificationPreferred),
		)
		if session != nil {
			session.UserID = waUser.WebAuthnID()
		}
	} else {
		options, session, err = s.WebAuthn.BeginLogin(waUser,
			webauthn.WithAllowedCredentials(waUser.descriptors()),
			webauthn.WithUserVerification(protocol.VerificationPreferred),
		)
	}
	if err != nil {
		return nil, apperr.Internal("failed to begin authentication", err)
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return nil, apperr.Internal("failed to encode authentication session", err)
	}
	if err := s.Challenges.Create(ctx, user.ID, models.ChallengeAuthentication, session.Challenge, string(sessionJSON), s.ChallengeTTL); err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "webauthn_login_started", map[string]interface{}{
		"allowed_credentials": len(stored),
	})
	return &options.Response, nil
}

// Finish verifies an assertion and mints a session for the credential's
// owner. The challenge is claimed before the counter moves, so of two
// finishes racing on one assertion only the first gets a session. A rejected
// assertion leaves both the challenge and the counter untouched.
func (s *AuthenticationService) Finish(ctx context.Context, body []byte) (*LoginResult, error) {
	result, err := s.finish(ctx, body)
	metrics.Ceremonies.WithLabelValues("authentication", "finish", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warn("webauthn_login_failed", map[string]interface{}{
			"kind":       string(apperr.KindOf(err)),
			"diagnostic": apperr.Diagnostic(err),
		})
	}
	return result, err
}

func (s *AuthenticationService) finish(ctx context.Context, body []byte) (*LoginResult, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, verificationError(err)
	}
	credentialID := encodeCredentialID(parsed.RawID)

	ownerID, err := s.resolveOwner(ctx, parsed, credentialID)
	if err != nil {
		return nil, err
	}

	pending, err := s.Challenges.Latest(ctx, ownerID, models.ChallengeAuthentication)
	if err != nil {
		return nil, err
	}

	// Filtering on both columns makes a forged user handle miss.
	stored, err := s.Credentials.FindByCredentialID(ctx, credentialID, ownerID)
	if err != nil {
		return nil, err
	}
	user, err := s.Directory.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	waUser, err := newWebAuthnUser(user, []models.WebAuthnCredential{*stored})
	if err != nil {
		return nil, err
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(pending.SessionData), &session); err != nil {
		return nil, apperr.Internal("failed to load authentication session", err)
	}
	if len(session.UserID) == 0 {
		session.UserID = waUser.WebAuthnID()
	}
	session.UserVerification = protocol.VerificationRequired

	credential, err := s.WebAuthn.ValidateLogin(waUser, session, parsed)
	if err != nil {
		return nil, verificationError(err)
	}
	if credential.Authenticator.CloneWarning {
		return nil, apperr.VerificationFailed("verification failed", errCounterRegression)
	}

	if err := s.Challenges.Consume(ctx, pending.Challenge); err != nil {
		return nil, err
	}
	if err := s.Credentials.UpdateCounter(ctx, stored.CredentialID, stored.SignCount, credential.Authenticator.SignCount, s.now()); err != nil {
		return nil, err
	}

	tokens, err := s.Sessions.IssueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "webauthn_login_succeeded", map[string]interface{}{
		"credential_id": stored.ID.String(),
		"sign_count":    credential.Authenticator.SignCount,
	})
	return &LoginResult{
		Verified:     true,
		UserID:       user.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	}, nil
}

// resolveOwner reads the user handle when the authenticator supplied one and
// otherwise looks the credential up by id alone.
func (s *AuthenticationService) resolveOwner(ctx context.Context, parsed *protocol.ParsedCredentialAssertionData, credentialID string) (uuid.UUID, error) {
	if handle := parsed.Response.UserHandle; len(handle) > 0 {
		ownerID, err := uuid.FromBytes(handle)
		if err != nil {
			return uuid.Nil, apperr.VerificationFailed("verification failed", err)
		}
		return ownerID, nil
	}
	return s.Credentials.FindOwner(ctx, credentialID)
}
