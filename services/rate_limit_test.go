package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	c.mutex.Unlock()
}

type erroringStore struct{}

func (erroringStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("backend unreachable")
}

func (erroringStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("backend unreachable")
}

func (erroringStore) Delete(context.Context, string) error {
	return errors.New("backend unreachable")
}

func newTestLimiter(store WindowStore, clock *fakeClock, maxRequests int, window time.Duration) *RateLimitService {
	return &RateLimitService{
		store: store,
		nowFn: clock.Now,
		configs: map[string]*RateLimitConfig{
			"api_general": {
				EndpointType: "api_general",
				MaxRequests:  maxRequests,
				Window:       window,
				IsActive:     true,
			},
		},
	}
}

func TestSlidingWindowAdmitsAndRejects(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	svc := newTestLimiter(NewMemoryStore(clock.Now), clock, 3, time.Second)

	// t=0, t=100ms, t=200ms all fit the budget.
	for i := 0; i < 3; i++ {
		allowed, info := svc.Allow("1.2.3.4", "api_general")
		require.True(t, allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 3-i-1, info.Remaining)
		clock.Advance(100 * time.Millisecond)
	}

	// t=300ms: window holds 3 timestamps, reject with resetAt from the
	// oldest surviving entry.
	allowed, info := svc.Allow("1.2.3.4", "api_general")
	require.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	require.NotNil(t, info.ResetAt)
	assert.True(t, info.ResetAt.Equal(time.Unix(1_700_000_001, 0)), "resetAt = oldest surviving timestamp + window")

	// t=1100ms: the first timestamp has slid out.
	clock.Advance(800 * time.Millisecond)
	allowed, _ = svc.Allow("1.2.3.4", "api_general")
	assert.True(t, allowed)
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	svc := newTestLimiter(NewMemoryStore(clock.Now), clock, 1, time.Second)

	allowed, _ := svc.Allow("1.2.3.4", "api_general")
	require.True(t, allowed)

	allowed, _ = svc.Allow("1.2.3.4", "api_general")
	assert.False(t, allowed)

	allowed, _ = svc.Allow("5.6.7.8", "api_general")
	assert.True(t, allowed, "a different caller has its own window")
}

func TestUnknownEndpointTypeIsUnlimited(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	svc := newTestLimiter(NewMemoryStore(clock.Now), clock, 1, time.Second)

	for i := 0; i < 10; i++ {
		allowed, info := svc.Allow("1.2.3.4", "never_configured")
		require.True(t, allowed)
		assert.Equal(t, -1, info.Remaining)
	}
}

func TestFailOpenOnStoreErrors(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	svc := newTestLimiter(erroringStore{}, clock, 1, time.Second)

	// Rate limiting must never block traffic because its own backend died.
	for i := 0; i < 20; i++ {
		allowed, _ := svc.Allow("1.2.3.4", "api_general")
		require.True(t, allowed)
	}
}

func TestCorruptWindowStateIsDiscarded(t *testing.T) {
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	store := NewMemoryStore(clock.Now)
	svc := newTestLimiter(store, clock, 2, time.Second)

	require.NoError(t, store.Set(context.Background(), windowKey("api_general", "1.2.3.4"), "{not json", time.Second))

	allowed, info := svc.Allow("1.2.3.4", "api_general")
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Remaining)
}
