package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/appverse/authapi/internal/metrics"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

const defaultFriendlyName = "Passkey"

type RegistrationService struct {
	WebAuthn     *webauthn.WebAuthn
	Challenges   store.ChallengeStore
	Credentials  store.CredentialStore
	ChallengeTTL time.Duration
}

func NewRegistrationService(wa *webauthn.WebAuthn, challenges store.ChallengeStore, credentials store.CredentialStore, ttl time.Duration) *RegistrationService {
	return &RegistrationService{
		WebAuthn:     wa,
		Challenges:   challenges,
		Credentials:  credentials,
		ChallengeTTL: ttl,
	}
}

// Start builds creation options that exclude every credential the user
// already has and stores the ceremony session as the pending challenge.
func (s *RegistrationService) Start(ctx context.Context, user *models.User) (*protocol.PublicKeyCredentialCreationOptions, error) {
	options, err := s.start(ctx, user)
	metrics.Ceremonies.WithLabelValues("registration", "start", metrics.Outcome(err)).Inc()
	return options, err
}

func (s *RegistrationService) start(ctx context.Context, user *models.User) (*protocol.PublicKeyCredentialCreationOptions, error) {
	stored, err := s.Credentials.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	waUser, err := newWebAuthnUser(user, stored)
	if err != nil {
		return nil, err
	}

	options, session, err := s.WebAuthn.BeginRegistration(waUser,
		webauthn.WithExclusions(waUser.descriptors()),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:        protocol.ResidentKeyRequirementPreferred,
			RequireResidentKey: protocol.ResidentKeyNotRequired(),
			UserVerification:   protocol.VerificationPreferred,
		}),
	)
	if err != nil {
		return nil, apperr.Internal("failed to begin registration", err)
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return nil, apperr.Internal("failed to encode registration session", err)
	}
	if err := s.Challenges.Create(ctx, user.ID, models.ChallengeRegistration, session.Challenge, string(sessionJSON), s.ChallengeTTL); err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "webauthn_registration_started", map[string]interface{}{
		"excluded_credentials": len(stored),
	})
	return &options.Response, nil
}

// Finish verifies the attestation against the pending challenge with user
// verification required, claims the challenge and stores the new credential.
// A rejected attestation commits nothing and leaves the challenge in place.
func (s *RegistrationService) Finish(ctx context.Context, user *models.User, body []byte, friendlyName string) (*models.WebAuthnCredential, error) {
	cred, err := s.finish(ctx, user, body, friendlyName)
	metrics.Ceremonies.WithLabelValues("registration", "finish", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.WarnWithUser(user.ID.String(), "webauthn_registration_failed", map[string]interface{}{
			"kind":       string(apperr.KindOf(err)),
			"diagnostic": apperr.Diagnostic(err),
		})
	}
	return cred, err
}

func (s *RegistrationService) finish(ctx context.Context, user *models.User, body []byte, friendlyName string) (*models.WebAuthnCredential, error) {
	pending, err := s.Challenges.Latest(ctx, user.ID, models.ChallengeRegistration)
	if err != nil {
		return nil, err
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(pending.SessionData), &session); err != nil {
		return nil, apperr.Internal("failed to load registration session", err)
	}
	session.UserVerification = protocol.VerificationRequired

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, verificationError(err)
	}

	stored, err := s.Credentials.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	waUser, err := newWebAuthnUser(user, stored)
	if err != nil {
		return nil, err
	}

	credential, err := s.WebAuthn.CreateCredential(waUser, session, parsed)
	if err != nil {
		return nil, verificationError(err)
	}

	name := strings.TrimSpace(friendlyName)
	if name == "" {
		name = defaultFriendlyName
	}
	if err := s.Challenges.Consume(ctx, pending.Challenge); err != nil {
		return nil, err
	}
	record := fromLibraryCredential(user.ID, credential, name)
	if err := s.Credentials.Insert(ctx, &record); err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "webauthn_credential_registered", map[string]interface{}{
		"credential_id": record.ID.String(),
		"name":          record.FriendlyName,
		"sign_count":    record.SignCount,
	})
	return &record, nil
}
