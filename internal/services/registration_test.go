package services

import (
	"context"
	"testing"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/descope/virtualwebauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationCeremony(t *testing.T) {
	h := newCeremonyHarness(t)
	ctx := context.Background()
	user := h.createUser(t, "alice@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	stored := h.register(t, user, &authenticator, cred)

	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, "Test key", stored.FriendlyName)
	assert.Equal(t, encodeCredentialID(cred.ID), stored.CredentialID)
	assert.Equal(t, uint32(0), stored.SignCount)
	assert.NotEmpty(t, stored.PublicKey)

	list, err := h.credentials.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	var reloaded models.User
	require.NoError(t, h.db.First(&reloaded, "id = ?", user.ID).Error)
	assert.True(t, reloaded.HasWebAuthn)

	_, err = h.challenges.Latest(ctx, user.ID, models.ChallengeRegistration)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "challenge should be consumed, got %v", err)
}

func TestRegistrationExcludesExistingCredentials(t *testing.T) {
	h := newCeremonyHarness(t)
	user := h.createUser(t, "alice@example.com")

	options, err := h.reg.Start(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, options.CredentialExcludeList)
	assert.Equal(t, testRPID, options.RelyingParty.ID)

	authenticator := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	h.register(t, user, &authenticator, cred)

	options, err = h.reg.Start(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, options.CredentialExcludeList, 1)
	assert.Equal(t, cred.ID, []byte(options.CredentialExcludeList[0].CredentialID))
}

func TestRegistrationDefaultFriendlyName(t *testing.T) {
	h := newCeremonyHarness(t)
	user := h.createUser(t, "alice@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	body := h.attest(t, h.rp, user, authenticator, cred)

	stored, err := h.reg.Finish(context.Background(), user, body, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Passkey", stored.FriendlyName)
}

func TestRegistrationFinishWithoutChallenge(t *testing.T) {
	h := newCeremonyHarness(t)
	user := h.createUser(t, "alice@example.com")

	_, err := h.reg.Finish(context.Background(), user, []byte(`{}`), "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRegistrationExpiredChallenge(t *testing.T) {
	h := newCeremonyHarness(t)
	h.reg.ChallengeTTL = -time.Second
	user := h.createUser(t, "alice@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	body := h.attest(t, h.rp, user, authenticator, cred)

	_, err := h.reg.Finish(context.Background(), user, body, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRegistrationVerificationFailureStoresNothing(t *testing.T) {
	h := newCeremonyHarness(t)
	ctx := context.Background()
	user := h.createUser(t, "alice@example.com")

	wrongOrigin := virtualwebauthn.RelyingParty{Name: testRPName, ID: testRPID, Origin: "https://evil.example.net"}
	authenticator := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	body := h.attest(t, wrongOrigin, user, authenticator, cred)

	_, err := h.reg.Finish(ctx, user, body, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindVerificationFailed))
	assert.NotEmpty(t, apperr.Diagnostic(err))

	list, err := h.credentials.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = h.challenges.Latest(ctx, user.ID, models.ChallengeRegistration)
	assert.NoError(t, err, "challenge should survive a failed attestation")
}

func TestRegistrationMalformedBody(t *testing.T) {
	h := newCeremonyHarness(t)
	user := h.createUser(t, "alice@example.com")

	_, err := h.reg.Start(context.Background(), user)
	require.NoError(t, err)

	_, err = h.reg.Finish(context.Background(), user, []byte(`not json`), "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindVerificationFailed))
}
