package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EventBooth/internal/pkg/constants"
)

type WebhookRouter struct {
	deps Dependencies
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.HealthRoute, w.deps.Health.HandleHealthz)

	// WooCommerce posts order deliveries here
	webhooks := app.Group(constants.WebhooksRoute)
	webhooks.Post(constants.WooCommercePath, w.deps.Webhooks.HandleWooCommerceWebhook)
}

func NewWebhookRouter(deps Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}
