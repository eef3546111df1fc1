package router_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisorhub/mira/internal/router"
	"github.com/advisorhub/mira/pkg/models"
)

func newTestCache(t *testing.T, ttl time.Duration, maxSize int) *router.IntentCache {
	t.Helper()
	c := router.NewIntentCache(ttl, maxSize, time.Hour)
	t.Cleanup(c.Close)
	return c
}

func TestIntentCache_GetSet(t *testing.T) {
	c := newTestCache(t, time.Minute, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	v := models.IntentClassification{Intent: "create_lead", Reasons: []string{"a"}}
	c.Set("k", v)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "create_lead", got.Intent)

	// Returned values are copies.
	got.Reasons[0] = "mutated"
	again, _ := c.Get("k")
	assert.Equal(t, "a", again.Reasons[0])
}

func TestIntentCache_Expiry(t *testing.T) {
	c := newTestCache(t, 20*time.Millisecond, 10)
	c.Set("k", models.IntentClassification{Intent: "x"})
	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok, "expired entry should miss")
}

func TestIntentCache_EvictsOldestTenth(t *testing.T) {
	c := newTestCache(t, time.Minute, 20)
	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%d", i), models.IntentClassification{})
	}
	require.Equal(t, 20, c.Len())

	c.Set("overflow", models.IntentClassification{})

	assert.Equal(t, 19, c.Len())
	for _, k := range []string{"k0", "k1"} {
		_, ok := c.Get(k)
		assert.False(t, ok, "%s should have been evicted", k)
	}
	_, ok := c.Get("k2")
	assert.True(t, ok)
}

func TestIntentCache_Stats(t *testing.T) {
	c := newTestCache(t, 5*time.Minute, 1000)
	c.Set("k", models.IntentClassification{})
	c.Get("k")
	c.Get("nope")

	s := c.Stats()
	assert.Equal(t, 1, s.Size)
	assert.Equal(t, 1000, s.MaxSize)
	assert.Equal(t, int64(300000), s.TTLMs)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
}

func TestIntentCache_CleanupRemovesExpired(t *testing.T) {
	c := router.NewIntentCache(10*time.Millisecond, 10, 5*time.Millisecond)
	defer c.Close()
	c.Set("k", models.IntentClassification{})

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestIntentCache_CloseIdempotent(t *testing.T) {
	c := router.NewIntentCache(0, 0, 0)
	c.Close()
	c.Close()
}

func TestCacheKey(t *testing.T) {
	ctx := &models.MiraContext{Module: models.ModuleCustomer, Page: "/customer"}
	assert.Equal(t, router.CacheKey("Show  My Leads", ctx), router.CacheKey("show my leads", ctx))
	assert.NotEqual(t, router.CacheKey("show my leads", ctx),
		router.CacheKey("show my leads", &models.MiraContext{Module: models.ModuleCustomer, Page: "/customer/detail"}))
}
