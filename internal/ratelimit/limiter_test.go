package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Sliding{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestFixedAllowRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewFixed(client, "fixed")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "ip:10.0.0.1", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-i, remaining)
		require.True(t, reset.After(time.Now()))
	}
	allowed, _, _, err := limiter.Allow(ctx, "ip:10.0.0.1", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "ip:10.0.0.2", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimitersDisabledWithoutLimit(t *testing.T) {
	fixed, err := NewFixed(nil, "")
	require.NoError(t, err)
	for _, l := range []Limiter{Sliding{}, fixed} {
		allowed, remaining, _, err := l.Allow(context.Background(), "k", time.Minute, 0)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Zero(t, remaining)
	}
}
