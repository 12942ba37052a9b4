package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimits_BucketPerGroupAndClient(t *testing.T) {
	l := NewClientLimits(map[string]Quota{
		"savings": {PerSecond: 0, Burst: 2},
		"wallets": {PerSecond: 0, Burst: 1},
	}, time.Minute)

	assert.True(t, l.Allow("savings", "1.1.1.1"))
	assert.True(t, l.Allow("savings", "1.1.1.1"))
	assert.False(t, l.Allow("savings", "1.1.1.1"), "burst exhausted")
	assert.True(t, l.Allow("savings", "2.2.2.2"), "clients are independent")
	assert.True(t, l.Allow("wallets", "1.1.1.1"), "groups are independent")
	assert.False(t, l.Allow("wallets", "1.1.1.1"))

	for i := 0; i < 500; i++ {
		require.True(t, l.Allow("webhook", "1.1.1.1"), "groups without a quota are open")
	}
}

func TestClientLimits_SweepDropsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewClientLimits(map[string]Quota{"savings": {PerSecond: 0, Burst: 1}}, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("savings", "a")
	now = now.Add(30 * time.Second)
	l.Allow("savings", "b")
	assert.False(t, l.Allow("savings", "a"))

	now = now.Add(45 * time.Second)
	assert.Equal(t, 0, l.Sweep(), "a was touched 45s ago")
	now = now.Add(time.Minute)
	assert.Equal(t, 2, l.Sweep())
	assert.True(t, l.Allow("savings", "a"), "a fresh bucket after sweep")
}

func TestManager_TripsOnConsecutiveFailures(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 2, Timeout: time.Minute}, nil)
	boom := errors.New("dial tcp: connection refused")

	require.ErrorIs(t, m.Do("vault.send", func() error { return boom }), boom)
	require.ErrorIs(t, m.Do("vault.send", func() error { return boom }), boom)

	called := false
	err := m.Do("vault.send", func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke fn")

	assert.NoError(t, m.Do("vault.read", func() error { return nil }), "breakers are per name")
}

func TestManager_CancellationDoesNotTrip(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 1, Timeout: time.Minute}, nil)

	_ = m.Do("vault.send", func() error { return context.Canceled })
	assert.NoError(t, m.Do("vault.send", func() error { return nil }))
}
