package engine

import (
	"sync"
	"testing"
)

func TestQuotaTryReserveUpToCap(t *testing.T) {
	q := NewQuotaTracker(nil)

	for i := 1; i <= 2; i++ {
		ok, n := q.TryReserve("500325", "2025-06-02", 2)
		if !ok || n != i {
			t.Fatalf("reserve %d: ok=%v n=%d", i, ok, n)
		}
	}
	ok, n := q.TryReserve("500325", "2025-06-02", 2)
	if ok {
		t.Fatalf("expected rejection over cap")
	}
	if n != 2 {
		t.Fatalf("rejection must not mutate the counter, got %d", n)
	}
	if q.Used("500325", "2025-06-02") != 2 {
		t.Fatalf("unexpected used count %d", q.Used("500325", "2025-06-02"))
	}
}

func TestQuotaRolloverClearsCounts(t *testing.T) {
	resets := 0
	q := NewQuotaTracker(func(string) { resets++ })

	q.TryReserve("500325", "2025-06-02", 1)
	if ok, _ := q.TryReserve("500325", "2025-06-02", 1); ok {
		t.Fatalf("expected cap hit")
	}

	ok, n := q.TryReserve("500325", "2025-06-03", 1)
	if !ok || n != 1 {
		t.Fatalf("new date must re-admit, ok=%v n=%d", ok, n)
	}
	// Adopting the initial date is not a rollover; only the date change is.
	if resets != 1 {
		t.Fatalf("expected 1 reset, got %d", resets)
	}
	if q.CurrentDate() != "2025-06-03" {
		t.Fatalf("unexpected date %q", q.CurrentDate())
	}
}

func TestQuotaInstrumentsIndependent(t *testing.T) {
	q := NewQuotaTracker(nil)

	q.TryReserve("500325", "2025-06-02", 1)
	if ok, _ := q.TryReserve("532540", "2025-06-02", 1); !ok {
		t.Fatalf("cap on one instrument must not affect another")
	}
}

func TestQuotaConcurrentRolloverResetsOnce(t *testing.T) {
	resets := 0
	var resetMu sync.Mutex
	q := NewQuotaTracker(func(string) {
		resetMu.Lock()
		resets++
		resetMu.Unlock()
	})
	q.Roll("2025-06-02")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Roll("2025-06-03")
		}()
	}
	wg.Wait()

	if resets != 1 {
		t.Fatalf("expected exactly one reset for the date change, got %d", resets)
	}
}

func TestQuotaFirstAdoptionDoesNotReset(t *testing.T) {
	resets := 0
	q := NewQuotaTracker(func(string) { resets++ })

	if !q.Roll("2025-06-02") {
		t.Fatalf("first adoption should report the date change")
	}
	if resets != 0 {
		t.Fatalf("adopting the first date must not fire a reset, got %d", resets)
	}
	if q.Roll("2025-06-02") {
		t.Fatalf("same date must be a no-op")
	}
	if !q.Roll("2025-06-03") {
		t.Fatalf("date change should roll")
	}
	if resets != 1 {
		t.Fatalf("expected 1 reset after the date change, got %d", resets)
	}
}

func TestQuotaRolloverClearsBeforePublishingDate(t *testing.T) {
	var q *QuotaTracker
	q = NewQuotaTracker(func(string) {
		// The clear must run before the new date becomes visible, so a
		// concurrent reader cannot pair the new date with uncleared state.
		if q.CurrentDate() != "2025-06-02" {
			t.Errorf("new date published before the clear, saw %q", q.CurrentDate())
		}
	})
	q.Roll("2025-06-02")
	q.Roll("2025-06-03")
	if q.CurrentDate() != "2025-06-03" {
		t.Fatalf("unexpected date %q", q.CurrentDate())
	}
}

func TestQuotaConcurrentReservationsSurviveRollover(t *testing.T) {
	q := NewQuotaTracker(nil)
	q.Roll("2025-06-02")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			instrument := "INS" + string(rune('A'+n))
			ok, _ := q.TryReserve(instrument, "2025-06-03", 1)
			if !ok {
				t.Errorf("reservation for %s rejected", instrument)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		instrument := "INS" + string(rune('A'+i))
		if used := q.Used(instrument, "2025-06-03"); used != 1 {
			t.Fatalf("reservation for %s lost to the rollover clear, used=%d", instrument, used)
		}
	}
}
