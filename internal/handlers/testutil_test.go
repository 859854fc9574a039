package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/appverse/authapi/internal/database"
	"github.com/appverse/authapi/internal/identity"
	"github.com/appverse/authapi/internal/middleware"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/services"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/apptoken"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	testPrefix   = "/auth-api"
	testRPID     = "example.com"
	testRPOrigin = "https://example.com"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	audit *services.AuditService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithLimiter(t, nil)
}

func setupTestEnvWithLimiter(t *testing.T, limiter *middleware.RateLimiter) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("test-secret", time.Hour, 24*time.Hour)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          testRPID,
		RPDisplayName: "Example Apps",
		RPOrigins:     []string{testRPOrigin},
	})
	if err != nil {
		t.Fatalf("failed configuring webauthn: %v", err)
	}

	signer, err := apptoken.NewSigner("test-secret")
	if err != nil {
		t.Fatalf("failed creating app token signer: %v", err)
	}

	challenges := store.NewGormChallengeStore(db)
	credentials := store.NewGormCredentialStore(db)
	provider := identity.NewProvider(db)
	auditService := services.NewAuditService(db, nil)

	t.Cleanup(func() {
		auditService.Close()
		_ = sqlDB.Close()
	})

	router := &Router{
		Prefix:      testPrefix,
		Auth:        middleware.NewAuthMiddleware(provider, provider),
		RateLimiter: limiter,
		WebAuthn: NewWebAuthnHandler(
			services.NewRegistrationService(wa, challenges, credentials, 5*time.Minute),
			services.NewAuthenticationService(wa, challenges, credentials, provider, provider, 5*time.Minute),
			services.NewCredentialService(credentials),
			auditService,
		),
		Apps: NewAppsHandler(
			services.NewAppTokenService(signer, store.NewGormAppAccessStore(db), provider, provider, provider,
				[]string{"notes", "calculator", "chat", "games"}, time.Hour),
			auditService,
		),
	}

	return &testEnv{app: router.NewApp(), db: db, audit: auditService}
}

func createTestUser(t *testing.T, db *gorm.DB, email string) (*models.User, string) {
	t.Helper()

	user := &models.User{Email: email, DisplayName: "Test User"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	tokens, err := utils.GenerateSessionTokens(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, tokens.AccessToken
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func apiPath(path string) string {
	return testPrefix + path
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		var encoded []byte
		switch p := payload.(type) {
		case []byte:
			encoded = p
		case string:
			encoded = []byte(p)
		default:
			var err error
			encoded, err = json.Marshal(payload)
			if err != nil {
				t.Fatalf("failed to marshal payload: %v", err)
			}
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d body=%s", expected, resp.StatusCode, string(raw))
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T (%+v)", body["data"], body)
	}
	return data
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %T (%+v)", body["data"], body)
	}
	return data
}
