package engine

import (
	"sync"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/domain/repository"
)

// HistoryLog is the append-only intraday record of every accepted signal.
// Entries are immutable once inserted; the only removal path is the daily
// reset.
type HistoryLog struct {
	mu sync.RWMutex
	m  map[string]*models.SignalRecord
}

func NewHistoryLog() *HistoryLog {
	return &HistoryLog{m: make(map[string]*models.SignalRecord)}
}

// Append inserts rec under key if absent. Returns false (no-op) when the key
// already exists, enforcing append-only semantics without a caller pre-check.
func (h *HistoryLog) Append(key string, rec *models.SignalRecord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.m[key]; exists {
		return false
	}
	h.m[key] = rec
	return true
}

func (h *HistoryLog) Get(key string) (*models.SignalRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.m[key]
	return rec, ok
}

func (h *HistoryLog) Snapshot() repository.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := make(repository.Snapshot, len(h.m))
	for k, v := range h.m {
		snap[k] = v
	}
	return snap
}

func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.m)
}

// Reset clears the log. Called only on date rollover.
func (h *HistoryLog) Reset() {
	h.mu.Lock()
	h.m = make(map[string]*models.SignalRecord)
	h.mu.Unlock()
}

// LatestCache keeps the last accepted, triggered record per instrument.
// Unlike the ActiveCache it never expires entries; it is cleared only by the
// daily reset, so readers always see the most recent real trigger rather
// than a transient "cleared" state.
type LatestCache struct {
	mu sync.RWMutex
	m  map[string]*models.SignalRecord
}

func NewLatestCache() *LatestCache {
	return &LatestCache{m: make(map[string]*models.SignalRecord)}
}

// Update unconditionally overwrites the record for instrument.
func (l *LatestCache) Update(instrument string, rec *models.SignalRecord) {
	l.mu.Lock()
	l.m[instrument] = rec
	l.mu.Unlock()
}

// PutIfAbsent inserts without overwriting. Used by restore so a store
// snapshot never clobbers a record accepted since startup.
func (l *LatestCache) PutIfAbsent(instrument string, rec *models.SignalRecord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.m[instrument]; exists {
		return false
	}
	l.m[instrument] = rec
	return true
}

func (l *LatestCache) Get(instrument string) (*models.SignalRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.m[instrument]
	return rec, ok
}

func (l *LatestCache) Snapshot() repository.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := make(repository.Snapshot, len(l.m))
	for k, v := range l.m {
		snap[k] = v
	}
	return snap
}

func (l *LatestCache) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

// Reset clears the cache. Called only on date rollover.
func (l *LatestCache) Reset() {
	l.mu.Lock()
	l.m = make(map[string]*models.SignalRecord)
	l.mu.Unlock()
}
