package engine

import (
	"sync"
	"time"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/domain/repository"
)

// EvictFunc observes entries leaving the ActiveCache. It is informational
// only; the cache's own expiry check stays authoritative.
type EvictFunc func(instrument, reason string)

const (
	EvictExpired  = "expired"
	EvictCapacity = "capacity"
)

type activeEntry struct {
	rec      *models.SignalRecord
	expireAt time.Time
}

// ActiveCache holds the most recent live signal per instrument, expiring
// strictly by wall-clock TTL from acceptance. A hard entry cap bounds memory
// under pathological instrument counts.
type ActiveCache struct {
	mu      sync.Mutex
	data    map[string]activeEntry
	maxSize int
	onEvict EvictFunc
	janitor *time.Ticker
	stopCh  chan struct{}
	now     func() time.Time
}

// NewActiveCache creates a cache with the given entry cap. The background
// janitor sweeps expired entries so eviction logging does not wait for the
// next read.
func NewActiveCache(maxSize int, onEvict EvictFunc) *ActiveCache {
	if maxSize <= 0 {
		maxSize = 500
	}
	c := &ActiveCache{
		data:    make(map[string]activeEntry),
		maxSize: maxSize,
		onEvict: onEvict,
		janitor: time.NewTicker(time.Minute),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go c.sweep()
	return c
}

// Put stores rec under instrument with expiry-after-write ttl.
func (c *ActiveCache) Put(instrument string, rec *models.SignalRecord, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[instrument]; !exists && len(c.data) >= c.maxSize {
		c.evictSoonestLocked()
	}
	c.data[instrument] = activeEntry{rec: rec, expireAt: c.now().Add(ttl)}
}

// Get returns the live record for instrument, removing it if expired.
func (c *ActiveCache) Get(instrument string) (*models.SignalRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[instrument]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expireAt) {
		delete(c.data, instrument)
		c.notify(instrument, EvictExpired)
		return nil, false
	}
	return e.rec, true
}

// Invalidate drops the entry for instrument, if any. Called when an inbound
// event reports the instrument is no longer triggered.
func (c *ActiveCache) Invalidate(instrument string) {
	c.mu.Lock()
	delete(c.data, instrument)
	c.mu.Unlock()
}

// Snapshot copies all unexpired entries.
func (c *ActiveCache) Snapshot() repository.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	snap := make(repository.Snapshot, len(c.data))
	for instrument, e := range c.data {
		if now.After(e.expireAt) {
			continue
		}
		snap[instrument] = e.rec
	}
	return snap
}

// Len reports the current entry count, expired-but-unswept included.
func (c *ActiveCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Close stops the background janitor.
func (c *ActiveCache) Close() {
	c.janitor.Stop()
	close(c.stopCh)
}

func (c *ActiveCache) sweep() {
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.janitor.C:
			c.mu.Lock()
			now := c.now()
			for instrument, e := range c.data {
				if now.After(e.expireAt) {
					delete(c.data, instrument)
					c.notify(instrument, EvictExpired)
				}
			}
			c.mu.Unlock()
		}
	}
}

// evictSoonestLocked drops the entry closest to expiry to make room.
func (c *ActiveCache) evictSoonestLocked() {
	var victim string
	var victimAt time.Time
	for instrument, e := range c.data {
		if victim == "" || e.expireAt.Before(victimAt) {
			victim = instrument
			victimAt = e.expireAt
		}
	}
	if victim != "" {
		delete(c.data, victim)
		c.notify(victim, EvictCapacity)
	}
}

func (c *ActiveCache) notify(instrument, reason string) {
	if c.onEvict != nil {
		c.onEvict(instrument, reason)
	}
}
