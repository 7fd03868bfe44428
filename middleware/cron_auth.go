package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

const CronSecretHeader = "X-Cron-Secret"

// CronSecret admits the external scheduler. The secret may also come as ?secret=
// for schedulers that cannot set headers.
func CronSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(CronSecretHeader)
		if provided == "" {
			provided = c.Query("secret")
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid cron secret",
			})
		}
		return c.Next()
	}
}
