package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

// Config holds the WooCommerce webhook settings.
type Config struct {
	WebhookSecret  string
	RequestTimeout time.Duration
}

// LoadConfig loads the webhook settings. A missing secret is fatal.
func LoadConfig(src env.Source) (*Config, error) {
	cfg := &Config{
		WebhookSecret:  strings.TrimSpace(src.GetEnv("WC_WEBHOOK_SECRET", "")),
		RequestTimeout: src.GetDuration("WEBHOOK_TIMEOUT", 15*time.Second),
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrSecretNotConfigured
	}
	return cfg, nil
}
