package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mailsift/mailsift/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(zap.NewNop())
	_, err := c.Hit(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheHitBumpsCounters(t *testing.T) {
	c := NewMemoryCache(zap.NewNop())
	stored := time.Now().Add(-time.Hour)
	require.NoError(t, c.Store(context.Background(), &core.CachedPattern{
		Fingerprint: "abc123",
		Category:    "SPAM",
		Confidence:  0.9,
		HitCount:    1,
		LastUsed:    stored,
		FromDomain:  "x.example",
	}))

	first, err := c.Hit(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 2, first.HitCount)
	assert.True(t, first.LastUsed.After(stored))

	second, err := c.Hit(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 3, second.HitCount)
	assert.Equal(t, "SPAM", second.Category)
}

func TestMemoryCacheStoreReplaces(t *testing.T) {
	c := NewMemoryCache(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, &core.CachedPattern{Fingerprint: "k", Category: "SPAM", HitCount: 5}))
	require.NoError(t, c.Store(ctx, &core.CachedPattern{Fingerprint: "k", Category: "VENTE", HitCount: 1}))

	p, err := c.Hit(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "VENTE", p.Category)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, c.Store(ctx, &core.CachedPattern{Fingerprint: "k", Category: "SPAM"}))

	p, err := c.Hit(ctx, "k")
	require.NoError(t, err)
	p.Category = "MUTATED"

	again, err := c.Hit(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "SPAM", again.Category)
}
