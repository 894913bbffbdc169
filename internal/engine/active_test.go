package engine

import (
	"fmt"
	"testing"
	"time"

	"SignalDeck/internal/domain/models"
)

func rec(instrument string) *models.SignalRecord {
	return &models.SignalRecord{
		Source:      "fudkii",
		Instrument:  instrument,
		Direction:   "LONG",
		Triggered:   true,
		TriggerTime: 1748850000000,
		AcceptedAt:  1748850000000,
	}
}

func TestActiveExpiresAfterTTL(t *testing.T) {
	c := NewActiveCache(10, nil)
	defer c.Close()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("500325", rec("500325"), 30*time.Minute)
	if _, ok := c.Get("500325"); !ok {
		t.Fatalf("expected entry before TTL")
	}

	now = now.Add(31 * time.Minute)
	if _, ok := c.Get("500325"); ok {
		t.Fatalf("expected entry gone after TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("lazy expiry must remove the entry, len=%d", c.Len())
	}
}

func TestActiveSnapshotSkipsExpired(t *testing.T) {
	c := NewActiveCache(10, nil)
	defer c.Close()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("a", rec("a"), 10*time.Minute)
	c.Put("b", rec("b"), 60*time.Minute)
	now = now.Add(20 * time.Minute)

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 live entry, got %d", len(snap))
	}
	if _, ok := snap["b"]; !ok {
		t.Fatalf("expected b to survive")
	}
}

func TestActiveCapacityEvictsSoonestExpiring(t *testing.T) {
	var evicted, reason string
	c := NewActiveCache(2, func(instrument, r string) { evicted, reason = instrument, r })
	defer c.Close()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("short", rec("short"), 5*time.Minute)
	c.Put("long", rec("long"), 60*time.Minute)
	c.Put("new", rec("new"), 30*time.Minute)

	if evicted != "short" || reason != EvictCapacity {
		t.Fatalf("expected capacity eviction of short, got %q %q", evicted, reason)
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatalf("expected long retained")
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatalf("expected new inserted")
	}
}

func TestActiveInvalidate(t *testing.T) {
	c := NewActiveCache(10, nil)
	defer c.Close()

	c.Put("500325", rec("500325"), 30*time.Minute)
	c.Invalidate("500325")
	if _, ok := c.Get("500325"); ok {
		t.Fatalf("expected entry removed")
	}
}

func TestActiveOverwriteDoesNotEvict(t *testing.T) {
	c := NewActiveCache(2, func(instrument, _ string) {
		t.Fatalf("unexpected eviction of %s", instrument)
	})
	defer c.Close()

	for i := 0; i < 2; i++ {
		c.Put(fmt.Sprintf("i%d", i), rec("x"), 30*time.Minute)
	}
	// Re-putting an existing key at capacity replaces in place.
	c.Put("i0", rec("x"), 30*time.Minute)
	if c.Len() != 2 {
		t.Fatalf("unexpected len %d", c.Len())
	}
}
