package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterPool_EvictsIdleAddresses(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pool := newLimiterPool(1, 1)
	pool.now = func() time.Time { return now }

	req.True(pool.Allow("192.0.2.1"))
	req.True(pool.Allow("192.0.2.2"))
	req.Equal(2, pool.size())

	// Only the second address stays active
	now = now.Add(limiterIdleTTL / 2)
	pool.Allow("192.0.2.2")

	now = now.Add(limiterIdleTTL/2 + time.Second)
	pool.Allow("192.0.2.3")
	req.Equal(2, pool.size())

	_, kept := pool.m["192.0.2.2"]
	req.True(kept)
	_, evicted := pool.m["192.0.2.1"]
	req.False(evicted)
}

func TestLimiterPool_EvictedAddressStartsWithFullBucket(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	pool := newLimiterPool(0.001, 1)
	pool.now = func() time.Time { return now }

	req.True(pool.Allow("192.0.2.1"))
	req.False(pool.Allow("192.0.2.1"))

	now = now.Add(2 * limiterIdleTTL)
	req.True(pool.Allow("192.0.2.1"))
}
