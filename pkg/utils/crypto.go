package utils

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyDerivationSalt = "authapi-key-derivation"

// DeriveKey expands the master secret into a 32 byte key bound to purpose,
// so each token family signs with its own key.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}
	reader := hkdf.New(sha256.New, []byte(secret), []byte(keyDerivationSalt), []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}
