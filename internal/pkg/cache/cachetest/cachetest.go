// Package cachetest connects tests to a local Redis or skips them.
package cachetest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Test databases, one per package so parallel packages do not flush each
// other. 0 and 1 are used by the customer cache and the limiter storage.
const (
	CacheDB   = 14
	CounterDB = 15
)

// Client returns a client for database db on the first reachable Redis
// endpoint, flushing it before and after the test. Without a reachable Redis
// the test is skipped.
func Client(t *testing.T, db int) *redis.Client {
	t.Helper()

	hosts := unique(os.Getenv("CACHE_HOST"), "cache", "localhost", "127.0.0.1")
	ports := unique(os.Getenv("CACHE_PORT"), "6379")
	passwords := unique(os.Getenv("CACHE_PASSWORD"), "")

	var lastErr error
	for _, host := range hosts {
		for _, port := range ports {
			for _, password := range passwords {
				client := redis.NewClient(&redis.Options{
					Addr:     fmt.Sprintf("%s:%s", host, port),
					Password: password,
					DB:       db,
				})

				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
				err := client.Ping(ctx).Err()
				cancel()
				if err != nil {
					lastErr = err
					_ = client.Close()
					continue
				}

				flush(t, client)
				t.Cleanup(func() {
					flush(t, client)
					_ = client.Close()
				})
				return client
			}
		}
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}

func flush(t *testing.T, client *redis.Client) {
	t.Helper()
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush test redis db: %v", err)
	}
}

func unique(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
