package handlers

import (
	"strings"

	"github.com/appverse/authapi/internal/middleware"
	"github.com/appverse/authapi/internal/services"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AppsHandler struct {
	auditor
	Tokens *services.AppTokenService
}

func NewAppsHandler(tokens *services.AppTokenService, audit *services.AuditService) *AppsHandler {
	return &AppsHandler{auditor: auditor{audit: audit}, Tokens: tokens}
}

type appRequest struct {
	AppName     string `json:"app_name"`
	AppToken    string `json:"app_token"`
	Token       string `json:"token"`
	AppAccessID string `json:"app_access_id"`
}

func parseAppRequest(c *fiber.Ctx) (appRequest, error) {
	var req appRequest
	err := parseBody(c, &req)
	return req, err
}

func (h *AppsHandler) GenerateAppToken(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	req, err := parseAppRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	token, err := h.Tokens.Generate(c.UserContext(), user, req.AppName)
	h.record(c, userIDPtr(user), services.AuditAppTokenIssued, err, map[string]interface{}{
		"app_name": req.AppName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, token)
}

func (h *AppsHandler) ExchangeToken(c *fiber.Ctx) error {
	req, err := parseAppRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	tokens, err := h.Tokens.Exchange(c.UserContext(), req.AppToken, req.AppName)
	h.record(c, nil, services.AuditAppTokenExchanged, err, map[string]interface{}{
		"app_name": req.AppName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, tokens)
}

// VerifyToken answers 200 for valid and invalid tokens alike. The token may
// come from the body or, failing that, the bearer header.
func (h *AppsHandler) VerifyToken(c *fiber.Ctx) error {
	req, err := parseAppRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = middleware.BearerToken(c.Get(fiber.HeaderAuthorization))
	}

	return utils.Success(c, fiber.StatusOK, h.Tokens.VerifyToken(c.UserContext(), token))
}

func (h *AppsHandler) AuthorizeApp(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	req, err := parseAppRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.Tokens.Authorize(c.UserContext(), user, req.AppName)
	h.record(c, userIDPtr(user), services.AuditAppAuthorized, err, map[string]interface{}{
		"app_name": req.AppName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

// GetUserApps lists the caller's authorized apps. A token in the body must
// belong to the caller.
func (h *AppsHandler) GetUserApps(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	req, err := parseAppRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	if token := strings.TrimSpace(req.Token); token != "" {
		status := h.Tokens.VerifyToken(c.UserContext(), token)
		if !status.Valid || *status.UserID != user.ID {
			return respondError(c, apperr.ErrUnauthenticated)
		}
	}

	apps, err := h.Tokens.ListApps(c.UserContext(), user)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, apps)
}

func (h *AppsHandler) RevokeApp(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	req, err := parseAppRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	if req.AppAccessID == "" {
		return respondError(c, apperr.Validation("app_access_id is required"))
	}
	accessID, err := parseUUID(req.AppAccessID)
	if err != nil {
		return respondError(c, apperr.Validation("app_access_id is not a valid id"))
	}

	result, err := h.Tokens.Revoke(c.UserContext(), user, accessID)
	h.record(c, userIDPtr(user), services.AuditAppRevoked, err, map[string]interface{}{
		"app_access_id": accessID.String(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}
