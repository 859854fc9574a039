package middleware

import (
	"strings"

	"github.com/appverse/authapi/internal/identity"
	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/logger"
	"github.com/appverse/authapi/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const currentUserKey = "currentUser"

type AuthMiddleware struct {
	Verifier  identity.TokenVerifier
	Directory identity.Directory
}

func NewAuthMiddleware(verifier identity.TokenVerifier, directory identity.Directory) *AuthMiddleware {
	return &AuthMiddleware{Verifier: verifier, Directory: directory}
}

// RequireAuth resolves the bearer token to a user row. Requests without a
// valid token stop here with 401.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	tokenString := BearerToken(authHeader)
	if tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":          c.IP(),
			"path":        c.Path(),
			"auth_header": authHeader[:min(len(authHeader), 20)] + "...",
		})
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	userID, err := a.Verifier.VerifyAccessToken(c.UserContext(), tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := a.Directory.FindByID(c.UserContext(), userID)
	if err != nil {
		logger.Warn("jwt_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": userID.String(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	c.Locals(currentUserKey, user)
	c.Locals(logger.UserIDKey, user.ID.String())
	return c.Next()
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header
// value, or "" when the value has another shape.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
