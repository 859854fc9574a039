package handlers

import (
	"github.com/appverse/authapi/internal/services"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type WebAuthnHandler struct {
	auditor
	Registration   *services.RegistrationService
	Authentication *services.AuthenticationService
	Credentials    *services.CredentialService
}

func NewWebAuthnHandler(
	registration *services.RegistrationService,
	authentication *services.AuthenticationService,
	credentials *services.CredentialService,
	audit *services.AuditService,
) *WebAuthnHandler {
	return &WebAuthnHandler{
		auditor:        auditor{audit: audit},
		Registration:   registration,
		Authentication: authentication,
		Credentials:    credentials,
	}
}

func (h *WebAuthnHandler) RegisterStart(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	options, err := h.Registration.Start(c.UserContext(), user)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, options)
}

// RegisterFinish takes the raw attestation response. An optional
// friendly_name may ride along at the top level of the same object.
func (h *WebAuthnHandler) RegisterFinish(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var extra struct {
		FriendlyName string `json:"friendly_name"`
	}
	if err := parseBody(c, &extra); err != nil {
		h.record(c, userIDPtr(user), services.AuditPasskeyRegistered, err, nil)
		return respondError(c, err)
	}

	cred, err := h.Registration.Finish(c.UserContext(), user, c.Body(), extra.FriendlyName)
	details := map[string]interface{}{}
	if cred != nil {
		details["credential_db_id"] = cred.ID.String()
		details["friendly_name"] = cred.FriendlyName
	}
	h.record(c, userIDPtr(user), services.AuditPasskeyRegistered, err, details)
	if err != nil {
		return respondError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"verified": true})
}

func (h *WebAuthnHandler) LoginStart(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	options, err := h.Authentication.Start(c.UserContext(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, options)
}

func (h *WebAuthnHandler) LoginFinish(c *fiber.Ctx) error {
	result, err := h.Authentication.Finish(c.UserContext(), c.Body())
	if result != nil {
		h.record(c, &result.UserID, services.AuditPasskeyLogin, nil, nil)
	} else {
		h.record(c, nil, services.AuditPasskeyLogin, err, nil)
	}
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

func (h *WebAuthnHandler) ListCredentials(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	creds, err := h.Credentials.List(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, creds)
}

type credentialRequest struct {
	CredentialDBID string `json:"credential_db_id"`
	FriendlyName   string `json:"friendly_name"`
}

func parseCredentialRequest(c *fiber.Ctx) (uuid.UUID, credentialRequest, error) {
	var req credentialRequest
	if err := parseBody(c, &req); err != nil {
		return uuid.Nil, req, err
	}
	if req.CredentialDBID == "" {
		return uuid.Nil, req, apperr.Validation("credential_db_id is required")
	}
	id, err := parseUUID(req.CredentialDBID)
	if err != nil {
		return uuid.Nil, req, apperr.Validation("credential_db_id is not a valid id")
	}
	return id, req, nil
}

func (h *WebAuthnHandler) DeleteCredential(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	credID, _, err := parseCredentialRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	err = h.Credentials.Delete(c.UserContext(), user.ID, credID)
	h.record(c, userIDPtr(user), services.AuditPasskeyRemoved, err, map[string]interface{}{
		"credential_db_id": credID.String(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessMessage(c, fiber.StatusOK, "credential deleted")
}

func (h *WebAuthnHandler) RenameCredential(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	credID, req, err := parseCredentialRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.Credentials.Rename(c.UserContext(), user.ID, credID, req.FriendlyName)
	h.record(c, userIDPtr(user), services.AuditPasskeyRenamed, err, map[string]interface{}{
		"credential_db_id": credID.String(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, summary)
}
