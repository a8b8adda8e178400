package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/EventBooth/app/controllers"
	"github.com/ManuelReschke/EventBooth/internal/pkg/constants"
	"github.com/ManuelReschke/EventBooth/internal/pkg/middleware"
)

type OperatorRouter struct {
	deps Dependencies
}

func (o OperatorRouter) InstallRouter(app *fiber.App) {
	limit := 60
	if o.deps.OperatorAuth != nil && o.deps.OperatorAuth.RateLimit > 0 {
		limit = o.deps.OperatorAuth.RateLimit
	}

	operator := app.Group(constants.OperatorRoute,
		middleware.RequireOperator(o.deps.OperatorAuth),
		limiter.New(limiter.Config{
			Max:        limit,
			Expiration: time.Minute,
			Storage:    o.deps.LimiterStorage,
			KeyGenerator: func(c *fiber.Ctx) string {
				return "operator:" + controllers.GetClientIP(c)
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
			},
		}),
	)

	// fiber metrics
	operator.Get(constants.OperatorMetrics, monitor.New(monitor.Config{Title: "EventBooth Metrics"}))

	// Audit log
	operator.Get("/webhooks", o.deps.Operator.HandleListWebhooks)
	operator.Get("/webhooks/:id", o.deps.Operator.HandleGetWebhook)
	operator.Post("/webhooks/:id/replay", o.deps.Operator.HandleReplayWebhook)
	operator.Delete("/webhooks", o.deps.Operator.HandlePurgeWebhooks)

	// Outcome counters
	operator.Get(constants.OperatorStats, o.deps.Operator.HandleStats)

	// Package catalogue
	operator.Get(constants.OperatorPackages, o.deps.Operator.HandlePackageReport)
}

func NewOperatorRouter(deps Dependencies) *OperatorRouter {
	return &OperatorRouter{deps: deps}
}
