//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaqa/internal/cache"
)

func TestRedisCache(t *testing.T) {
	c, err := cache.NewRedisCache(cache.RedisConfig{URL: redisURL, Prefix: "test:", TTL: time.Second})
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(testCtx, "pad thai")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(testCtx, "pad thai", []byte(`[{"title":"Pad Thai"}]`)))
	got, ok, err := c.Get(testCtx, "pad thai")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"title":"Pad Thai"}]`, string(got))

	require.Eventually(t, func() bool {
		_, ok, err := c.Get(testCtx, "pad thai")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond, "entries expire after the TTL")
}
