package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/appverse/authapi/internal/middleware"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/internal/services"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError converts err to the response envelope. Only verification
// failures carry their diagnostic to the client.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)

	if status >= fiber.StatusInternalServerError {
		logger.Error("request_failed", err, map[string]interface{}{
			"path":       c.Path(),
			"kind":       string(kind),
			"request_id": middleware.GetRequestID(c),
		})
	}

	if kind == apperr.KindVerificationFailed {
		return utils.ErrorWithDetail(c, status, apperr.PublicMessage(err), apperr.Diagnostic(err))
	}
	return utils.Error(c, status, apperr.PublicMessage(err))
}

// ErrorHandler renders errors that escape a handler, including recovered
// panics, in the standard envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.Error(c, fe.Code, fe.Message)
	}
	return respondError(c, err)
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func currentUser(c *fiber.Ctx) (*models.User, error) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return user, nil
}

// parseBody decodes an optional JSON body regardless of Content-Type. An
// empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

type auditor struct {
	audit *services.AuditService
}

// record queues an audit row for the request. Failures carry the error kind.
func (h *auditor) record(c *fiber.Ctx, userID *uuid.UUID, action string, err error, details map[string]interface{}) {
	outcome := services.AuditOutcomeSuccess
	if err != nil {
		outcome = services.AuditOutcomeFailure
		if details == nil {
			details = map[string]interface{}{}
		}
		details["kind"] = string(apperr.KindOf(err))
	}
	h.audit.LogAsync(services.AuditEntry{
		UserID:    userID,
		Action:    action,
		Outcome:   outcome,
		Details:   details,
		IPAddress: c.IP(),
		RequestID: middleware.GetRequestID(c),
	})
}

func userIDPtr(user *models.User) *uuid.UUID {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
