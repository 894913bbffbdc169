package engine

import (
	"sync"
	"sync/atomic"
)

// QuotaTracker enforces the per-instrument daily emission cap.
//
// The remembered trading date lives in an atomic cell for lock-free reads,
// but rollover runs under the mutex and publishes the new date only after
// the clear completes. No caller can observe the new date with uncleared
// counters; losers of the race retry their reservation against the freshly
// cleared state.
type QuotaTracker struct {
	date    atomic.Pointer[string]
	mu      sync.Mutex
	counts  map[string]int
	onReset func(tradingDate string)
}

// NewQuotaTracker creates a tracker. onReset (optional) runs once per date
// rollover, after the counters are cleared, to reset the sibling caches.
// Adopting the very first date is not a rollover and does not fire onReset.
func NewQuotaTracker(onReset func(tradingDate string)) *QuotaTracker {
	return &QuotaTracker{
		counts:  make(map[string]int),
		onReset: onReset,
	}
}

// Roll adopts tradingDate if it differs from the remembered date.
// Returns true when this call adopted the date (first adoption or rollover).
func (q *QuotaTracker) Roll(tradingDate string) bool {
	if cur := q.date.Load(); cur != nil && *cur == tradingDate {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cur := q.date.Load()
	if cur != nil && *cur == tradingDate {
		// Lost the race; the winner already cleared for this date.
		return false
	}

	q.counts = make(map[string]int)
	if cur != nil && q.onReset != nil {
		q.onReset(tradingDate)
	}
	q.date.Store(&tradingDate)
	return true
}

// TryReserve reserves one emission slot for (instrument, tradingDate).
// Returns accepted=false without mutating state once the counter would
// exceed maxPerDay. countAfter is the counter value after the call.
func (q *QuotaTracker) TryReserve(instrument, tradingDate string, maxPerDay int) (bool, int) {
	q.Roll(tradingDate)

	q.mu.Lock()
	defer q.mu.Unlock()

	key := instrument + ":" + tradingDate
	n := q.counts[key]
	if n >= maxPerDay {
		return false, n
	}
	q.counts[key] = n + 1
	return true, n + 1
}

// Used reports the current count for (instrument, tradingDate).
func (q *QuotaTracker) Used(instrument, tradingDate string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[instrument+":"+tradingDate]
}

// CurrentDate returns the remembered trading date, or "" before the first event.
func (q *QuotaTracker) CurrentDate() string {
	if d := q.date.Load(); d != nil {
		return *d
	}
	return ""
}
