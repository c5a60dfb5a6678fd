package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/barekit/dossier/pkg/fingerprint"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, opts...), mr
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	vec := []float32{0.6, 0, -0.8, 1e-7}
	c.Set(ctx, "k", vec)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, WithTTL(time.Minute))

	c.Set(ctx, "k", []float32{1})
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_ServesEncoder(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, WithPrefix("test:"))

	enc := fingerprint.NewLocal(fingerprint.WithCache(c))
	first := enc.Encode(ctx, "third party subprocessors")
	assert.Len(t, mr.Keys(), 1)

	other := fingerprint.NewLocal(fingerprint.WithCache(c))
	assert.Equal(t, first, other.Encode(ctx, "third party subprocessors"))
}

func TestCache_UnavailableIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	mr.Close()

	c.Set(ctx, "k", []float32{1})
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
