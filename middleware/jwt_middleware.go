package middleware

import (
	"strings"

	"debtflow/config"
	"debtflow/models"
	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
)

// UserLocalKey holds the authenticated *models.User for the rest of the chain.
// Controllers scope every sequence and invoice query by this user.
const UserLocalKey = "user"

// Protected admits requests carrying an access token issued by the session
// layer. Tokens are read from a Bearer header, or the access_token cookie
// for browser clients.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, msg := accessToken(c)
		if msg != "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, msg, nil)
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}

		var user models.User
		if err := config.DB.First(&user, claims.UserID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", nil)
		}
		if !user.IsActive {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
		}
		// logout and password changes bump the version
		if claims.TokenVersion != user.TokenVersion {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Token has been revoked", nil)
		}

		c.Locals(UserLocalKey, &user)
		return c.Next()
	}
}

// CurrentUser returns the user set by Protected, or nil outside it
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(UserLocalKey).(*models.User)
	return user
}

func accessToken(c *fiber.Ctx) (token, problem string) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if token = c.Cookies("access_token"); token == "" {
			return "", "Authorization required"
		}
		return token, ""
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", "Invalid authorization format"
	}
	return token, ""
}
