package services

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// webAuthnUser adapts a directory user and its stored credentials to the
// webauthn.User interface. The user handle is the 16 byte UUID.
type webAuthnUser struct {
	user  *models.User
	creds []webauthn.Credential
}

func newWebAuthnUser(user *models.User, stored []models.WebAuthnCredential) (*webAuthnUser, error) {
	creds := make([]webauthn.Credential, 0, len(stored))
	for _, sc := range stored {
		cred, err := toLibraryCredential(sc)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return &webAuthnUser{user: user, creds: creds}, nil
}

func (u *webAuthnUser) WebAuthnID() []byte {
	b, _ := u.user.ID.MarshalBinary()
	return b
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}

func (u *webAuthnUser) descriptors() []protocol.CredentialDescriptor {
	out := make([]protocol.CredentialDescriptor, 0, len(u.creds))
	for _, c := range u.creds {
		out = append(out, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: c.ID,
			Transport:    c.Transport,
		})
	}
	return out
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func toLibraryCredential(sc models.WebAuthnCredential) (webauthn.Credential, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(sc.CredentialID)
	if err != nil {
		return webauthn.Credential{}, apperr.Internal("stored credential id is not base64url", err)
	}

	transports := make([]protocol.AuthenticatorTransport, 0, len(sc.Transports))
	for _, t := range sc.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}

	return webauthn.Credential{
		ID:              rawID,
		PublicKey:       sc.PublicKey,
		AttestationType: sc.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: sc.BackupEligible,
			BackupState:    sc.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    sc.AAGUID,
			SignCount: sc.SignCount,
		},
	}, nil
}

func fromLibraryCredential(userID uuid.UUID, cred *webauthn.Credential, friendlyName string) models.WebAuthnCredential {
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	return models.WebAuthnCredential{
		UserID:          userID,
		CredentialID:    encodeCredentialID(cred.ID),
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		FriendlyName:    friendlyName,
		Transports:      transports,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

// verificationError wraps a library rejection, keeping its developer detail
// as the diagnostic.
func verificationError(err error) error {
	var protoErr *protocol.Error
	if errors.As(err, &protoErr) && protoErr.DevInfo != "" {
		return apperr.VerificationFailed("verification failed", fmt.Errorf("%s: %s", protoErr.Details, protoErr.DevInfo))
	}
	return apperr.VerificationFailed("verification failed", err)
}
