package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func configureJWTForTest(t *testing.T, secret string, access, refresh time.Duration) {
	t.Helper()

	originalSecret := append([]byte(nil), jwtSecret...)
	originalAccess := accessTTL
	originalRefresh := refreshTTL

	t.Cleanup(func() {
		jwtSecret = originalSecret
		accessTTL = originalAccess
		refreshTTL = originalRefresh
	})

	ConfigureJWT(secret, access, refresh)
}

func testUser() *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Email:     "user@example.com",
	}
}

func TestConfigureJWT(t *testing.T) {
	t.Run("updates secret and lifetimes when valid values are provided", func(t *testing.T) {
		configureJWTForTest(t, "test-secret", 2*time.Hour, 48*time.Hour)

		if got := string(jwtSecret); got != "test-secret" {
			t.Fatalf("expected jwt secret to be %q, got %q", "test-secret", got)
		}
		if accessTTL != 2*time.Hour || refreshTTL != 48*time.Hour {
			t.Fatalf("expected lifetimes 2h/48h, got %s/%s", accessTTL, refreshTTL)
		}
	})

	t.Run("ignores empty secret and non-positive lifetimes", func(t *testing.T) {
		configureJWTForTest(t, "initial-secret", time.Hour, 24*time.Hour)

		ConfigureJWT("", 0, -time.Second)

		if got := string(jwtSecret); got != "initial-secret" {
			t.Fatalf("expected jwt secret to remain %q, got %q", "initial-secret", got)
		}
		if accessTTL != time.Hour || refreshTTL != 24*time.Hour {
			t.Fatalf("expected lifetimes to remain, got %s/%s", accessTTL, refreshTTL)
		}
	})
}

func TestGenerateSessionTokens(t *testing.T) {
	t.Run("access token validates and carries the user", func(t *testing.T) {
		configureJWTForTest(t, "roundtrip-secret", time.Hour, 24*time.Hour)
		user := testUser()

		tokens, err := GenerateSessionTokens(user)
		if err != nil {
			t.Fatalf("expected token generation to succeed, got error: %v", err)
		}

		claims, err := ValidateAccessToken(tokens.AccessToken)
		if err != nil {
			t.Fatalf("expected access token validation to succeed, got error: %v", err)
		}
		if claims.UserID != user.ID {
			t.Fatalf("expected claims userID %s, got %s", user.ID, claims.UserID)
		}
		if claims.Subject != user.ID.String() {
			t.Fatalf("expected subject %q, got %q", user.ID.String(), claims.Subject)
		}
		if !tokens.ExpiresAt.After(time.Now()) {
			t.Fatalf("expected a future expiry, got %s", tokens.ExpiresAt)
		}
	})

	t.Run("refresh token is not accepted as access token", func(t *testing.T) {
		configureJWTForTest(t, "refresh-secret", time.Hour, 24*time.Hour)

		tokens, err := GenerateSessionTokens(testUser())
		if err != nil {
			t.Fatalf("expected token generation to succeed, got error: %v", err)
		}

		if _, err := ValidateToken(tokens.RefreshToken); err != nil {
			t.Fatalf("expected refresh token to be well-formed, got %v", err)
		}
		if _, err := ValidateAccessToken(tokens.RefreshToken); err == nil {
			t.Fatal("expected refresh token to be rejected as access token")
		}
	})

	t.Run("rejects expired token", func(t *testing.T) {
		configureJWTForTest(t, "expired-secret", time.Hour, time.Hour)

		expiredClaims := Claims{
			UserID:    uuid.New(),
			Email:     "expired@example.com",
			TokenType: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			},
		}

		expiredToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString(jwtSecret)
		if err != nil {
			t.Fatalf("failed to sign expired token for test: %v", err)
		}

		if _, err := ValidateAccessToken(expiredToken); err == nil {
			t.Fatal("expected expired token validation to fail, but it succeeded")
		}
	})

	t.Run("rejects malformed token string", func(t *testing.T) {
		configureJWTForTest(t, "malformed-secret", time.Hour, time.Hour)

		if _, err := ValidateToken("not-a-jwt"); err == nil {
			t.Fatal("expected malformed token validation to fail, but it succeeded")
		}
	})

	t.Run("rejects token signed with unexpected method", func(t *testing.T) {
		configureJWTForTest(t, "wrong-method-secret", time.Hour, time.Hour)

		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("failed to generate rsa key for test: %v", err)
		}

		signedToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			Subject:   uuid.New().String(),
		}).SignedString(privateKey)
		if err != nil {
			t.Fatalf("failed to sign rsa token for test: %v", err)
		}

		_, err = ValidateToken(signedToken)
		if err == nil {
			t.Fatal("expected validation to fail for token with unexpected signing method")
		}
		if !strings.Contains(err.Error(), "unexpected signing method") {
			t.Fatalf("expected signing method error, got: %v", err)
		}
	})
}
