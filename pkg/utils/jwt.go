package utils

import (
	"fmt"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	jwtSecret  = []byte("change-me-in-production")
	accessTTL  = time.Hour
	refreshTTL = 30 * 24 * time.Hour
)

type Claims struct {
	UserID    uuid.UUID `json:"userID"`
	Email     string    `json:"email"`
	TokenType string    `json:"tokenType"`
	jwt.RegisteredClaims
}

// SessionTokens is the access/refresh pair minted after a successful
// ceremony or token exchange.
type SessionTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func ConfigureJWT(secret string, access, refresh time.Duration) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if access > 0 {
		accessTTL = access
	}
	if refresh > 0 {
		refreshTTL = refresh
	}
}

func GenerateSessionTokens(user *models.User) (SessionTokens, error) {
	now := time.Now()
	expiresAt := now.Add(accessTTL)

	access, err := signClaims(user, TokenTypeAccess, now, expiresAt)
	if err != nil {
		return SessionTokens{}, err
	}
	refresh, err := signClaims(user, TokenTypeRefresh, now, now.Add(refreshTTL))
	if err != nil {
		return SessionTokens{}, err
	}

	return SessionTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.UTC().Truncate(time.Second),
	}, nil
}

func signClaims(user *models.User, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ValidateAccessToken is ValidateToken restricted to access tokens, so a
// refresh token can never be presented as a bearer credential.
func ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("invalid token type")
	}
	return claims, nil
}
