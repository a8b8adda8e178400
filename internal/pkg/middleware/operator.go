package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/ManuelReschke/EventBooth/internal/pkg/security"
)

// RequireOperator guards the operator API with HTTP basic auth. Without
// configured credentials the API answers 503 for every request.
func RequireOperator(cfg *security.OperatorConfig) fiber.Handler {
	if cfg == nil || !cfg.Enabled() {
		log.Warn("[Operator] OPERATOR_USER/OPERATOR_PASSWORD_HASH not set, operator API disabled")
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "operator_api_disabled",
				"message": "operator credentials are not configured",
			})
		}
	}

	return basicauth.New(basicauth.Config{
		Realm:      "EventBooth Operator",
		Authorizer: cfg.Authorize,
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="EventBooth Operator"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "operator login required",
			})
		},
	})
}
