package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EventBooth/app/controllers"
	"github.com/ManuelReschke/EventBooth/internal/pkg/security"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired handlers and settings the routes need.
type Dependencies struct {
	Health   *controllers.HealthController
	Webhooks *controllers.WebhookController
	Operator *controllers.OperatorController

	OperatorAuth *security.OperatorConfig
	// LimiterStorage backs the operator rate limiter. nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewWebhookRouter(deps), NewOperatorRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
