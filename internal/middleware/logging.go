package middleware

import (
	"time"

	"github.com/appverse/authapi/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

const requestIDKey = "requestID"

// RequestLogger writes one line per request. Errors returned down the chain
// are rendered here so the logged status is the one the client sees.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Locals(requestIDKey, requestID)
		c.Set(fiber.HeaderXRequestID, requestID)

		err := c.Next()
		if err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		statusCode := c.Response().StatusCode()
		user := "anonymous"
		if userID := logger.GetUserIDFromContext(c); userID != nil {
			user = *userID
		}

		details := map[string]interface{}{
			"method":       c.Method(),
			"path":         c.Path(),
			"user":         user,
			"success":      statusCode < 400,
			"status_code":  statusCode,
			"latency_ms":   time.Since(start).Milliseconds(),
			"ip":           c.IP(),
			"request_id":   requestID,
			"request_body": logger.GetRequestBodySummary(c),
		}

		switch {
		case statusCode >= 500:
			logger.Error("http_request", nil, details)
		case statusCode >= 400:
			logger.Warn("http_request", details)
		default:
			logger.Info("http_request", details)
		}
		return err
	}
}

// SecurityLogger flags rejected credentials and throttled clients.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		statusCode := c.Response().StatusCode()
		var reason string
		switch statusCode {
		case fiber.StatusUnauthorized:
			reason = "unauthorized"
		case fiber.StatusTooManyRequests:
			reason = "rate_limited"
		default:
			return err
		}

		details := map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"ip":     c.IP(),
			"reason": reason,
		}
		if userID := logger.GetUserIDFromContext(c); userID != nil {
			logger.WarnWithUser(*userID, "security_event", details)
		} else {
			logger.Warn("security_event", details)
		}
		return err
	}
}

// GetRequestID returns the id RequestLogger assigned to the request.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}
