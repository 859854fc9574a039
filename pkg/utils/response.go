package utils

import "github.com/gofiber/fiber/v2"

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// SuccessMessage answers with a human readable message and no data.
func SuccessMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// ErrorWithDetail adds an operator-facing message next to the error string.
func ErrorWithDetail(c *fiber.Ctx, status int, message, detail string) error {
	if detail == "" {
		return Error(c, status, message)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"message": detail,
	})
}
