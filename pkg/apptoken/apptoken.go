// Package apptoken issues and verifies the short-lived application tokens a
// first-party app hands to another app in the ecosystem. Tokens are HS256
// JWTs signed with a key derived from the service secret.
package apptoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/appverse/authapi/pkg/ids"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenType = "app"

var (
	ErrInvalidToken = errors.New("invalid application token")
	ErrExpiredToken = errors.New("application token expired")
)

type Claims struct {
	UserID    uuid.UUID `json:"uid"`
	AppName   string    `json:"app"`
	TokenType string    `json:"typ"`
	jwt.RegisteredClaims
}

type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(secret string) (*Signer, error) {
	key, err := utils.DeriveKey(secret, "app-token")
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, now: time.Now}, nil
}

// Generate returns a signed token for userID and appName valid for ttl.
func (s *Signer) Generate(userID uuid.UUID, appName string, ttl time.Duration) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(ttl)

	claims := Claims{
		UserID:    userID,
		AppName:   appName,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        ids.New(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign app token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, expiry and token type. The caller checks the app
// name against the one it expects.
func (s *Signer) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.UserID == uuid.Nil || claims.AppName == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
