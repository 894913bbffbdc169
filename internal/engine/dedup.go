package engine

import (
	"sync"
	"time"
)

// DedupFilter suppresses redelivered copies of the same logical event.
// It keeps a bounded map of recently seen dedup keys; a key seen again
// within the window is rejected. This is the only protection against
// at-least-once bus redelivery, so it must not depend on message offsets.
type DedupFilter struct {
	mu         sync.Mutex
	seen       map[string]time.Time
	window     time.Duration
	maxEntries int
	now        func() time.Time
}

// NewDedupFilter creates a filter with the given expiry window and entry cap.
func NewDedupFilter(window time.Duration, maxEntries int) *DedupFilter {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &DedupFilter{
		seen:       make(map[string]time.Time),
		window:     window,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Admit records key and returns true unless the key was already seen within
// the window.
func (f *DedupFilter) Admit(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if at, ok := f.seen[key]; ok && now.Sub(at) < f.window {
		return false
	}

	if len(f.seen) >= f.maxEntries {
		f.pruneLocked(now)
		if len(f.seen) >= f.maxEntries {
			f.evictOldestLocked()
		}
	}

	f.seen[key] = now
	return true
}

// Len reports the number of tracked keys, expired entries included.
func (f *DedupFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *DedupFilter) pruneLocked(now time.Time) {
	for key, at := range f.seen {
		if now.Sub(at) >= f.window {
			delete(f.seen, key)
		}
	}
}

func (f *DedupFilter) evictOldestLocked() {
	var oldestKey string
	oldestAt := f.now()

	for key, at := range f.seen {
		if at.Before(oldestAt) {
			oldestAt = at
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(f.seen, oldestKey)
	}
}
