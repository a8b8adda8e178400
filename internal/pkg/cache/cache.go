package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/EventBooth/internal/pkg/env"
)

const customerKeyPrefix = "identity:customer:"

// Config holds the connection settings of the Dragonfly/Redis cache server.
type Config struct {
	Host     string
	Port     int
	Password string
	Enabled  bool
}

// LoadConfig loads cache settings from the environment.
func LoadConfig(src env.Source) *Config {
	return &Config{
		Host:     src.GetEnv("CACHE_HOST", "localhost"),
		Port:     src.GetInt("CACHE_PORT", 6379),
		Password: src.GetEnv("CACHE_PASSWORD", ""),
		Enabled:  src.GetBool("CACHE_ENABLED", true),
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient connects to the cache server. It returns nil when the cache is
// disabled; an unreachable server is logged and the client is still returned
// because go-redis reconnects on demand.
func NewClient(cfg *Config) *redis.Client {
	if !cfg.Enabled {
		log.Info("[Cache] Cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0, // use default DB
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache: %v", err)
	} else {
		log.Infof("[Cache] Successfully connected to cache: %s", pong)
	}
	return client
}

// NewFiberStorage returns fiber middleware storage on database 1 (the
// customer cache uses DB 0).
func NewFiberStorage(cfg *Config) fiber.Storage {
	if !cfg.Enabled {
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: 1,
		Reset:    false,
	})
}

// CustomerIDCache remembers email to external customer id resolutions made
// through the legacy directory. Only positive answers are cached.
type CustomerIDCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCustomerIDCache wraps client. A nil client yields a nil cache.
func NewCustomerIDCache(client *redis.Client, ttl time.Duration) *CustomerIDCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CustomerIDCache{client: client, ttl: ttl}
}

func customerKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return customerKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached customer id for email. A nil cache always misses.
func (c *CustomerIDCache) Get(ctx context.Context, email string) (int64, bool, error) {
	if c == nil {
		return 0, false, nil
	}
	val, err := c.client.Get(ctx, customerKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

// Set stores the customer id for email.
func (c *CustomerIDCache) Set(ctx context.Context, email string, customerID int64) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, customerKey(email), strconv.FormatInt(customerID, 10), c.ttl).Err()
}
