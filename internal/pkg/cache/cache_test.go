package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventBooth/internal/pkg/cache/cachetest"
	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(env.FromMap(map[string]string{
		"CACHE_HOST":    "dragonfly",
		"CACHE_PORT":    "6380",
		"CACHE_ENABLED": "false",
	}))
	assert.Equal(t, "dragonfly:6380", cfg.Addr())
	assert.False(t, cfg.Enabled)
	assert.Nil(t, NewClient(cfg))
	assert.Nil(t, NewFiberStorage(cfg))
}

func TestCustomerKey_NormalizesEmail(t *testing.T) {
	assert.Equal(t, customerKey("Buyer@Example.com "), customerKey("buyer@example.com"))
	assert.NotEqual(t, customerKey("a@example.com"), customerKey("b@example.com"))
}

func TestCustomerIDCache_Nil(t *testing.T) {
	var c *CustomerIDCache
	assert.Nil(t, NewCustomerIDCache(nil, time.Hour))

	id, ok, err := c.Get(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.NoError(t, c.Set(context.Background(), "buyer@example.com", 42))
}

func TestCustomerIDCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCustomerIDCache(cachetest.Client(t, cachetest.CacheDB), time.Minute)

	_, ok, err := c.Get(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "Buyer@Example.com", 42))
	id, ok, err := c.Get(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)
}
