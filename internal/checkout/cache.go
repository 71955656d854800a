package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/acme-checkout/internal/pricing"
	"github.com/noah-isme/acme-checkout/internal/resilience"
)

// Cache stores rendered quotes in Redis keyed by basket contents. The namespace
// should change whenever the rule set does so stale prices are never replayed.
type Cache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
	breaker   *resilience.Breaker
}

// NewCache constructs a quote cache. A nil client or non-positive ttl disables it.
func NewCache(client *redis.Client, ttl time.Duration, namespace string) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{client: client, ttl: ttl, namespace: namespace}
}

// WithBreaker guards cache calls with b. While b is open every call fails
// fast with resilience.ErrOpenCircuit.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	if c != nil {
		c.breaker = b
	}
	return c
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, c.namespaced(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, c.namespaced(key), data, c.ttl).Err()
	})
}

func (c *Cache) namespaced(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

// quoteKey renders counts as "quote:B01=1,R01=2" in code order.
func quoteKey(counts pricing.ItemCounts) string {
	var b strings.Builder
	b.WriteString("quote:")
	for i, code := range sortedCodes(counts) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(code)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(counts[code]))
	}
	return b.String()
}
