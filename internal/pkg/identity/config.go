package identity

import (
	"strings"
	"time"

	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

const (
	DefaultTimeout = 5 * time.Second
	minTimeout     = time.Second
	maxTimeout     = 9 * time.Second
)

// Config holds the legacy directory settings.
type Config struct {
	VerifyURL   string
	VerifyToken string
	DSN         string
	TablePrefix string
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// LoadConfig loads the legacy directory settings. The timeout is clamped to
// single-digit seconds.
func LoadConfig(src env.Source) *Config {
	return &Config{
		VerifyURL:   strings.TrimSpace(src.GetEnv("LEGACY_VERIFY_URL", "")),
		VerifyToken: strings.TrimSpace(src.GetEnv("LEGACY_VERIFY_TOKEN", "")),
		DSN:         strings.TrimSpace(src.GetEnv("LEGACY_DB_DSN", "")),
		TablePrefix: strings.TrimSpace(src.GetEnv("LEGACY_TABLE_PREFIX", "wp_")),
		Timeout:     clampTimeout(src.GetDuration("LEGACY_TIMEOUT", DefaultTimeout)),
		CacheTTL:    src.GetDuration("LEGACY_CACHE_TTL", 24*time.Hour),
	}
}

func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d < minTimeout:
		return minTimeout
	case d > maxTimeout:
		return maxTimeout
	default:
		return d
	}
}

// NewDirectory builds the cascade from the configured backends. Backends
// without configuration are left out; a cascade with neither reports every
// lookup as unavailable.
func NewDirectory(cfg *Config) (*CascadeDirectory, *StoreDirectory, error) {
	var remote *RemoteDirectory
	if cfg.VerifyURL != "" {
		remote = NewRemoteDirectory(cfg.VerifyURL, cfg.VerifyToken, cfg.Timeout)
	}

	var store *StoreDirectory
	if cfg.DSN != "" {
		s, err := OpenStoreDirectory(cfg.DSN, cfg.TablePrefix, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}
	return NewCascadeDirectory(remote, store), store, nil
}
