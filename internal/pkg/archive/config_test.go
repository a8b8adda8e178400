package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

func TestLoadConfig_Disabled(t *testing.T) {
	cfg, err := LoadConfig(env.FromMap(map[string]string{}))
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "us-west-001", cfg.Region)
}

func TestLoadConfig_EnabledRequiresBucket(t *testing.T) {
	_, err := LoadConfig(env.FromMap(map[string]string{
		"AUDIT_ARCHIVE_ENABLED": "true",
		"S3_ACCESS_KEY_ID":      "key",
		"S3_SECRET_ACCESS_KEY":  "secret",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET_NAME")
}

func TestPurgeKey(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "audit/2026/03/04/purge-1772618400.jsonl", PurgeKey(ts))
}

func TestNewClient_Disabled(t *testing.T) {
	_, err := NewClient(t.Context(), &Config{})
	assert.ErrorIs(t, err, ErrDisabled)
}
