package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// WindowStore is the counter store behind the sliding-window limiter. Get
// reports presence explicitly so callers never confuse "no window yet" with
// an empty value.
type WindowStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// redisWindowStore adapts RedisService to the WindowStore contract.
type redisWindowStore struct {
	redisSvc *RedisService
}

func newRedisWindowStore(redisSvc *RedisService) *redisWindowStore {
	return &redisWindowStore{redisSvc: redisSvc}
}

func (s *redisWindowStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.redisSvc.GetWithPresence(ctx, key)
}

func (s *redisWindowStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.redisSvc.Set(ctx, key, value, ttl)
}

func (s *redisWindowStore) Delete(ctx context.Context, key string) error {
	return s.redisSvc.Delete(ctx, key)
}

// DegradingStore fronts a primary store with an in-process fallback. Any
// primary error flips traffic to the fallback for a cooldown, logged at
// warning level and never surfaced to the caller. The primary is probed
// again once the cooldown elapses.
type DegradingStore struct {
	primary  WindowStore
	fallback WindowStore

	cooldown time.Duration
	nowFn    func() time.Time

	mutex     sync.Mutex
	downUntil time.Time
}

func NewDegradingStore(primary, fallback WindowStore, cooldown time.Duration, nowFn func() time.Time) *DegradingStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}
	return &DegradingStore{
		primary:  primary,
		fallback: fallback,
		cooldown: cooldown,
		nowFn:    nowFn,
	}
}

func (s *DegradingStore) primaryDown() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.nowFn().Before(s.downUntil)
}

func (s *DegradingStore) markDown(op string, err error) {
	s.mutex.Lock()
	s.downUntil = s.nowFn().Add(s.cooldown)
	s.mutex.Unlock()

	log.WithError(err).WithField("op", op).Warn("Rate limit store unreachable, degrading to in-process fallback")
}

func (s *DegradingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.primaryDown() {
		return s.fallback.Get(ctx, key)
	}

	value, found, err := s.primary.Get(ctx, key)
	if err != nil {
		s.markDown("get", err)
		return s.fallback.Get(ctx, key)
	}
	return value, found, nil
}

func (s *DegradingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.primaryDown() {
		return s.fallback.Set(ctx, key, value, ttl)
	}

	if err := s.primary.Set(ctx, key, value, ttl); err != nil {
		s.markDown("set", err)
		return s.fallback.Set(ctx, key, value, ttl)
	}
	return nil
}

func (s *DegradingStore) Delete(ctx context.Context, key string) error {
	if s.primaryDown() {
		return s.fallback.Delete(ctx, key)
	}

	if err := s.primary.Delete(ctx, key); err != nil {
		s.markDown("delete", err)
		return s.fallback.Delete(ctx, key)
	}
	return nil
}
