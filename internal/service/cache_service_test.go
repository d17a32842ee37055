package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheService, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := NewCacheService(ctx)
	cs.now = func() time.Time { return now }
	return cs, &now
}

func TestCacheService_GetOrSetCachesUntilExpiry(t *testing.T) {
	cs, now := newTestCache(t)
	key := EscrowStatsCacheKey(uuid.New())
	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	v, err := cs.GetOrSet(context.Background(), key, time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, _ = cs.GetOrSet(context.Background(), key, time.Minute, compute)
	assert.Equal(t, 1, v)

	*now = now.Add(2 * time.Minute)
	v, _ = cs.GetOrSet(context.Background(), key, time.Minute, compute)
	assert.Equal(t, 2, v)
}

func TestCacheService_ZeroTTLDisablesCaching(t *testing.T) {
	cs, _ := newTestCache(t)
	calls := 0
	for i := 0; i < 3; i++ {
		_, err := cs.GetOrSet(context.Background(), "k", 0, func() (interface{}, error) {
			calls++
			return nil, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, cs.Len())
}

func TestCacheService_ErrorIsNotCached(t *testing.T) {
	cs, _ := newTestCache(t)
	_, err := cs.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	_, found := cs.Get("k")
	assert.False(t, found)
}

func TestCacheService_InvalidateUserCache(t *testing.T) {
	cs, _ := newTestCache(t)
	alice, bob := uuid.New(), uuid.New()
	cs.Set(EscrowStatsCacheKey(alice), 1, time.Minute)
	cs.Set(EscrowStatsCacheKey(bob), 2, time.Minute)

	cs.InvalidateUserCache(alice)

	_, found := cs.Get(EscrowStatsCacheKey(alice))
	assert.False(t, found)
	_, found = cs.Get(EscrowStatsCacheKey(bob))
	assert.True(t, found)
}

func TestCacheService_EvictExpired(t *testing.T) {
	cs, now := newTestCache(t)
	cs.Set("a", 1, time.Second)
	cs.Set("b", 2, time.Hour)

	*now = now.Add(time.Minute)
	cs.evictExpired()
	assert.Equal(t, 1, cs.Len())
}
