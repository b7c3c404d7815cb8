package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, perMinute, perHour int) *StarskeyWindowStore {
	t.Helper()

	store, err := NewStarskeyWindowStore(t.TempDir(), perMinute, perHour)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestAllowUnderLimit(t *testing.T) {
	store := newTestStore(t, 5, 100)

	for i := 0; i < 5; i++ {
		allowed, err := store.Allow("user-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}
}

func TestDenyOverMinuteLimit(t *testing.T) {
	store := newTestStore(t, 3, 100)

	for i := 0; i < 3; i++ {
		allowed, err := store.Allow("user-1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := store.Allow("user-1")
	require.NoError(t, err)
	assert.False(t, allowed, "4th request inside the same minute should be denied")

	// A different identifier keeps its own window
	allowed, err = store.Allow("user-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDenyOverHourLimit(t *testing.T) {
	store := newTestStore(t, 100, 4)

	for i := 0; i < 4; i++ {
		allowed, err := store.Allow("user-1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := store.Allow("user-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRetryAfter(t *testing.T) {
	store := newTestStore(t, 2, 100)

	_, err := store.Allow("user-1")
	require.NoError(t, err)
	_, err = store.Allow("user-1")
	require.NoError(t, err)

	allowed, err := store.Allow("user-1")
	require.NoError(t, err)
	require.False(t, allowed)

	retry := store.RetryAfter("user-1")
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)
}

func TestRetryAfterUnlimited(t *testing.T) {
	store := newTestStore(t, 10, 100)

	_, err := store.Allow("user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, store.RetryAfter("user-1"))
	assert.Equal(t, 0, store.RetryAfter("never-seen"))
}

func TestReset(t *testing.T) {
	store := newTestStore(t, 1, 100)

	allowed, err := store.Allow("user-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = store.Allow("user-1")
	require.NoError(t, err)
	require.False(t, allowed)

	ok, err := store.Reset("user-1")
	require.NoError(t, err)
	require.True(t, ok)

	allowed, err = store.Allow("user-1")
	require.NoError(t, err)
	assert.True(t, allowed, "window should be clear after reset")
}

func TestWindowSlides(t *testing.T) {
	store := newTestStore(t, 2, 100)

	base := time.Now()
	store.nowFn = func() time.Time { return base }

	_, err := store.Allow("user-1")
	require.NoError(t, err)
	_, err = store.Allow("user-1")
	require.NoError(t, err)

	allowed, err := store.Allow("user-1")
	require.NoError(t, err)
	require.False(t, allowed)

	// 61 seconds later the minute window has aged out
	store.nowFn = func() time.Time { return base.Add(61 * time.Second) }

	allowed, err = store.Allow("user-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPruneOlderThan(t *testing.T) {
	ts := []int64{10, 20, 30, 40}

	assert.Equal(t, []int64{30, 40}, pruneOlderThan(ts, 20))
	assert.Empty(t, pruneOlderThan(ts, 40))
	assert.Equal(t, ts, pruneOlderThan(ts, 5))
	assert.Empty(t, pruneOlderThan(nil, 100))
}
