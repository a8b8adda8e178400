package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventBooth/internal/pkg/billing"
	"github.com/ManuelReschke/EventBooth/internal/pkg/metrics/counter"
)

// WooCommerce webhook headers.
const (
	headerSignature  = "X-WC-Webhook-Signature"
	headerTopic      = "X-WC-Webhook-Topic"
	headerSource     = "X-WC-Webhook-Source"
	headerDeliveryID = "X-WC-Webhook-Delivery-ID"
)

type WebhookController struct {
	pipeline *billing.Pipeline
	outcomes *counter.Outcomes
	timeout  time.Duration
}

// NewWebhookController creates the webhook handler. outcomes may be nil.
func NewWebhookController(pipeline *billing.Pipeline, outcomes *counter.Outcomes, timeout time.Duration) *WebhookController {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookController{pipeline: pipeline, outcomes: outcomes, timeout: timeout}
}

// HandleWooCommerceWebhook runs an order webhook through the provisioning
// pipeline. The raw body is kept for signature verification.
func (w *WebhookController) HandleWooCommerceWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	ctx, cancel := context.WithTimeout(c.UserContext(), w.timeout)
	defer cancel()

	res := w.pipeline.Handle(ctx, billing.Delivery{
		Payload:    rawBody,
		Signature:  strings.TrimSpace(c.Get(headerSignature)),
		Topic:      strings.TrimSpace(c.Get(headerTopic)),
		Source:     strings.TrimSpace(c.Get(headerSource)),
		DeliveryID: strings.TrimSpace(c.Get(headerDeliveryID)),
	})

	log.Infof("[Webhook] %s delivery=%q from %s -> %d %s",
		c.Get(headerTopic), c.Get(headerDeliveryID), GetClientIP(c), res.HTTPStatus, res.AuditState)

	reason := res.Response.Reason
	if reason == "" {
		reason = res.Response.Error
	}
	if err := w.outcomes.Record(ctx, res.AuditState, reason); err != nil {
		log.Warnf("[Webhook] Failed to count outcome: %v", err)
	}
	return c.Status(res.HTTPStatus).JSON(res.Response)
}
