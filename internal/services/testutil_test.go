package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/appverse/authapi/internal/database"
	"github.com/appverse/authapi/internal/identity"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/descope/virtualwebauthn"
	"github.com/glebarez/sqlite"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testRPID     = "example.com"
	testRPName   = "Example Apps"
	testRPOrigin = "https://example.com"
)

type ceremonyHarness struct {
	db          *gorm.DB
	challenges  *store.GormChallengeStore
	credentials *store.GormCredentialStore
	provider    *identity.Provider
	reg         *RegistrationService
	auth        *AuthenticationService
	rp          virtualwebauthn.RelyingParty
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newCeremonyHarness(t *testing.T) *ceremonyHarness {
	t.Helper()

	utils.ConfigureJWT("services-test-secret", time.Hour, 24*time.Hour)
	db := setupTestDB(t)

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          testRPID,
		RPDisplayName: testRPName,
		RPOrigins:     []string{testRPOrigin},
	})
	require.NoError(t, err)

	challenges := store.NewGormChallengeStore(db)
	credentials := store.NewGormCredentialStore(db)
	provider := identity.NewProvider(db)

	return &ceremonyHarness{
		db:          db,
		challenges:  challenges,
		credentials: credentials,
		provider:    provider,
		reg:         NewRegistrationService(wa, challenges, credentials, 5*time.Minute),
		auth:        NewAuthenticationService(wa, challenges, credentials, provider, provider, 5*time.Minute),
		rp: virtualwebauthn.RelyingParty{
			Name:   testRPName,
			ID:     testRPID,
			Origin: testRPOrigin,
		},
	}
}

func (h *ceremonyHarness) createUser(t *testing.T, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email, DisplayName: "Test User"}
	require.NoError(t, h.db.Create(user).Error)
	return user
}

// attest runs registration start and returns the authenticator's response body.
func (h *ceremonyHarness) attest(t *testing.T, rp virtualwebauthn.RelyingParty, user *models.User, authenticator virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) []byte {
	t.Helper()

	options, err := h.reg.Start(context.Background(), user)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options)
	require.NoError(t, err)
	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	return []byte(virtualwebauthn.CreateAttestationResponse(rp, authenticator, cred, *parsed))
}

// register completes a full registration ceremony and hands the credential
// to the authenticator for later assertions.
func (h *ceremonyHarness) register(t *testing.T, user *models.User, authenticator *virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) *models.WebAuthnCredential {
	t.Helper()

	body := h.attest(t, h.rp, user, *authenticator, cred)
	stored, err := h.reg.Finish(context.Background(), user, body, "Test key")
	require.NoError(t, err)

	authenticator.AddCredential(cred)
	return stored
}

// assert runs login start for email and returns the assertion body.
func (h *ceremonyHarness) assert(t *testing.T, email string, authenticator virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) []byte {
	t.Helper()

	options, err := h.auth.Start(context.Background(), email)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options)
	require.NoError(t, err)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	return []byte(virtualwebauthn.CreateAssertionResponse(h.rp, authenticator, cred, *parsed))
}
