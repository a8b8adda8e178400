// Package counter keeps webhook outcome counters in Redis hashes.
package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const outcomesKey = "webhook:counters:outcomes"

// Count is one outcome bucket, keyed by audit status and reason.
type Count struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Count  int64  `json:"count"`
}

// Outcomes counts webhook results per status and reason. A nil *Outcomes is
// a no-op, used when the cache is disabled.
type Outcomes struct {
	client *redis.Client
	key    string
}

// NewOutcomes wraps client. A nil client yields a nil counter.
func NewOutcomes(client *redis.Client) *Outcomes {
	if client == nil {
		return nil
	}
	return &Outcomes{client: client, key: outcomesKey}
}

func field(status, reason string) string {
	return status + "|" + reason
}

// Record increments the bucket for status and reason.
func (o *Outcomes) Record(ctx context.Context, status, reason string) error {
	if o == nil || status == "" {
		return nil
	}
	return o.client.HIncrBy(ctx, o.key, field(status, reason), 1).Err()
}

// Snapshot returns the current counters, largest first.
func (o *Outcomes) Snapshot(ctx context.Context) ([]Count, error) {
	if o == nil {
		return []Count{}, nil
	}
	data, err := o.client.HGetAll(ctx, o.key).Result()
	if err != nil {
		return nil, err
	}
	return parse(data), nil
}

// Drain returns the counters and resets them. The hash is renamed to a
// temporary key first so increments arriving meanwhile start a fresh hash.
func (o *Outcomes) Drain(ctx context.Context) ([]Count, error) {
	if o == nil {
		return []Count{}, nil
	}

	tmpKey := fmt.Sprintf("%s:tmp:%d", o.key, time.Now().UnixNano())
	if err := o.client.Rename(ctx, o.key, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to drain
		if errors.Is(err, redis.Nil) || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return []Count{}, nil
		}
		return nil, err
	}
	// Ensure cleanup of tmpKey even if later steps fail
	defer o.client.Del(ctx, tmpKey)

	data, err := o.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return parse(data), nil
}

func parse(data map[string]string) []Count {
	out := make([]Count, 0, len(data))
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n == 0 {
			continue
		}
		status, reason, _ := strings.Cut(k, "|")
		out = append(out, Count{Status: status, Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return field(out[i].Status, out[i].Reason) < field(out[j].Status, out[j].Reason)
	})
	return out
}
