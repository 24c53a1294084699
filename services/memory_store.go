package services

import (
	"context"
	"sync"
	"time"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	log "github.com/sirupsen/logrus"
)

// MemoryStoreService is the in-process fallback behind the rate-limit window
// store. Entries expire by TTL: an expired entry is invisible to Get even
// before the sweeper removes it.
type MemoryStoreService struct {
	appServices.DefaultService

	mutex   sync.RWMutex
	entries map[string]memoryEntry

	nowFn         func() time.Time
	sweepInterval time.Duration
	closed        chan struct{}
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

const MEMORY_STORE_SVC = "memory_store_svc"

func (svc *MemoryStoreService) Id() string {
	return MEMORY_STORE_SVC
}

func (svc *MemoryStoreService) Configure(ctx *appContext.Context) error {
	svc.entries = make(map[string]memoryEntry)
	svc.closed = make(chan struct{})
	if svc.nowFn == nil {
		svc.nowFn = time.Now
	}
	if svc.sweepInterval == 0 {
		svc.sweepInterval = time.Minute
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *MemoryStoreService) Start() error {
	go svc.sweepLoop()
	return nil
}

func (svc *MemoryStoreService) Shutdown() {
	close(svc.closed)
}

// NewMemoryStore builds a store outside the service container, with an
// injectable clock. Used by tests and by the degrading store's default
// wiring.
func NewMemoryStore(nowFn func() time.Time) *MemoryStoreService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStoreService{
		entries:       make(map[string]memoryEntry),
		nowFn:         nowFn,
		sweepInterval: time.Minute,
		closed:        make(chan struct{}),
	}
}

func (svc *MemoryStoreService) Get(ctx context.Context, key string) (string, bool, error) {
	svc.mutex.RLock()
	entry, ok := svc.entries[key]
	svc.mutex.RUnlock()

	if !ok || svc.nowFn().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (svc *MemoryStoreService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	svc.mutex.Lock()
	svc.entries[key] = memoryEntry{
		value:     value,
		expiresAt: svc.nowFn().Add(ttl),
	}
	svc.mutex.Unlock()
	return nil
}

func (svc *MemoryStoreService) Delete(ctx context.Context, key string) error {
	svc.mutex.Lock()
	delete(svc.entries, key)
	svc.mutex.Unlock()
	return nil
}

func (svc *MemoryStoreService) sweepLoop() {
	ticker := time.NewTicker(svc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := svc.Sweep()
			if removed > 0 {
				log.WithField("removed", removed).Debug("Memory store sweep completed")
			}
		case <-svc.closed:
			return
		}
	}
}

// Sweep drops expired entries and returns how many were removed.
func (svc *MemoryStoreService) Sweep() int {
	now := svc.nowFn()

	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	removed := 0
	for key, entry := range svc.entries {
		if now.After(entry.expiresAt) {
			delete(svc.entries, key)
			removed++
		}
	}
	return removed
}

func (svc *MemoryStoreService) Len() int {
	svc.mutex.RLock()
	defer svc.mutex.RUnlock()
	return len(svc.entries)
}
