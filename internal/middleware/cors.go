package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "GET,POST,OPTIONS"
)

// CORS lets any origin call the API with the headers the client SDKs send.
// Every OPTIONS request is answered here with an empty 200.
func CORS() fiber.Handler {
	corsHandler := cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: corsAllowHeaders,
		AllowMethods: corsAllowMethods,
	})

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodOptions {
			return corsHandler(c)
		}
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Status(fiber.StatusOK)
		return nil
	}
}
