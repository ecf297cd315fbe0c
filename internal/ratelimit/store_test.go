package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowMemoryStore(t *testing.T) {
	store, err := NewStore(nil, "mem:")
	require.NoError(t, err)
	limiter := FixedWindow{Store: store}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "client", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, 2-i, remaining)
		require.True(t, reset.After(time.Now()))
	}
	allowed, remaining, _, err := limiter.Allow(ctx, "client", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "other", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestFixedWindowRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store, err := NewStore(client, "rl:")
	require.NoError(t, err)
	limiter := FixedWindow{Store: store}
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "client", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, _, err = limiter.Allow(ctx, "client", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestFixedWindowDisabled(t *testing.T) {
	allowed, remaining, _, err := FixedWindow{}.Allow(context.Background(), "k", time.Second, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
