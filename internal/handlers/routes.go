package handlers

import (
	"strings"

	"github.com/appverse/authapi/internal/middleware"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Router struct {
	Prefix      string
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	WebAuthn    *WebAuthnHandler
	Apps        *AppsHandler
}

type route struct {
	method  string
	path    string
	auth    bool
	handler fiber.Handler
}

func (r *Router) routes() []route {
	return []route{
		{fiber.MethodPost, "/webauthn/register/start", true, r.WebAuthn.RegisterStart},
		{fiber.MethodPost, "/webauthn/register/finish", true, r.WebAuthn.RegisterFinish},
		{fiber.MethodPost, "/webauthn/login/start", false, r.WebAuthn.LoginStart},
		{fiber.MethodPost, "/webauthn/login/finish", false, r.WebAuthn.LoginFinish},
		{fiber.MethodGet, "/webauthn/credentials/list", true, r.WebAuthn.ListCredentials},
		{fiber.MethodPost, "/webauthn/credentials/delete", true, r.WebAuthn.DeleteCredential},
		{fiber.MethodPost, "/webauthn/credentials/rename", true, r.WebAuthn.RenameCredential},
		{fiber.MethodPost, "/generate-app-token", true, r.Apps.GenerateAppToken},
		{fiber.MethodPost, "/exchange-token", false, r.Apps.ExchangeToken},
		{fiber.MethodPost, "/verify-token", false, r.Apps.VerifyToken},
		{fiber.MethodPost, "/authorize-app", true, r.Apps.AuthorizeApp},
		{fiber.MethodPost, "/get-user-apps", true, r.Apps.GetUserApps},
		{fiber.MethodPost, "/revoke-app", true, r.Apps.RevokeApp},
	}
}

// NewApp builds the fiber app: shared middleware, health and metrics at the
// root, the route table under Prefix and a catch-all 404.
func (r *Router) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             1024 * 1024,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestLogger())
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.SecurityLogger())
	app.Use(middleware.Metrics())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", middleware.MetricsEndpoint())

	prefix := "/" + strings.Trim(r.Prefix, "/")
	api := app.Group(prefix)
	for _, rt := range r.routes() {
		chain := make([]fiber.Handler, 0, 2)
		if rt.auth {
			chain = append(chain, r.Auth.RequireAuth)
		} else {
			chain = append(chain, r.RateLimiter.Handler())
		}
		chain = append(chain, rt.handler)
		api.Add(rt.method, rt.path, chain...)
	}

	app.Use(func(c *fiber.Ctx) error {
		return utils.Error(c, fiber.StatusNotFound, "route not found: "+c.Path())
	})
	return app
}
