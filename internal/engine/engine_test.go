package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/domain/repository"
	"SignalDeck/pkg/logger"
	"SignalDeck/pkg/util"
)

type fakeMetrics struct {
	mu       sync.Mutex
	accepted int
	rejected map[string]int
	errors   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rejected: make(map[string]int), errors: make(map[string]int)}
}

func (m *fakeMetrics) RecordAccepted(source, instrument string) {
	m.mu.Lock()
	m.accepted++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordRejected(source, reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordActiveSize(string, int)    {}
func (m *fakeMetrics) RecordEviction(string)           {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

// memStore is an in-memory DurableStore with the same overwrite/append
// semantics as the Redis adapter.
type memStore struct {
	mu      sync.Mutex
	active  map[string]repository.Snapshot
	latest  map[string]repository.Snapshot
	history map[string]repository.Snapshot
	fail    bool
}

func newMemStore() *memStore {
	return &memStore{
		active:  make(map[string]repository.Snapshot),
		latest:  make(map[string]repository.Snapshot),
		history: make(map[string]repository.Snapshot),
	}
}

func (s *memStore) PersistActive(_ context.Context, source string, snap repository.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.active[source] = snap
	return nil
}

func (s *memStore) PersistLatest(_ context.Context, source string, snap repository.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.latest[source] = snap
	return nil
}

func (s *memStore) PersistHistory(_ context.Context, source, tradingDate string, snap repository.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	key := source + ":" + tradingDate
	if s.history[key] == nil {
		s.history[key] = make(repository.Snapshot)
	}
	for k, v := range snap {
		s.history[key][k] = v
	}
	return nil
}

func (s *memStore) RestoreActive(_ context.Context, source string) (repository.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.active[source], nil
}

func (s *memStore) RestoreLatest(_ context.Context, source string) (repository.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.latest[source], nil
}

func (s *memStore) RestoreHistory(_ context.Context, source, tradingDate string) (repository.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.history[source+":"+tradingDate], nil
}

func (s *memStore) Close() error { return nil }

type failRegistrar struct{ calls int }

func (r *failRegistrar) Register(context.Context, *models.SignalRecord) error {
	r.calls++
	return errors.New("sink unavailable")
}

func (r *failRegistrar) Close() error { return nil }

func newTestEngine(t *testing.T, cfg Config, metrics repository.Metrics, registrar repository.Registrar) (*Engine, *time.Time) {
	t.Helper()
	if metrics == nil {
		metrics = newFakeMetrics()
	}
	e := New(cfg, logger.Nop(), metrics, registrar, nil)
	t.Cleanup(e.Close)

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })
	return e, &now
}

func triggered(instrument string, at time.Time) *models.SignalEvent {
	return &models.SignalEvent{
		Instrument:  instrument,
		Triggered:   true,
		Direction:   "LONG",
		TriggerTime: util.EpochMillis(at),
		Fields:      map[string]float64{"price": 101.5},
	}
}

func TestEngineRejectsMalformed(t *testing.T) {
	m := newFakeMetrics()
	e, _ := newTestEngine(t, Config{Source: "fudkii"}, m, nil)

	if ok, reason := e.Process(context.Background(), nil); ok || reason != models.RejectMalformed {
		t.Fatalf("nil event: ok=%v reason=%q", ok, reason)
	}
	if ok, reason := e.Process(context.Background(), &models.SignalEvent{Triggered: true}); ok || reason != models.RejectMalformed {
		t.Fatalf("missing instrument: ok=%v reason=%q", ok, reason)
	}
	if m.rejected[string(models.RejectMalformed)] != 2 {
		t.Fatalf("unexpected malformed count %d", m.rejected[string(models.RejectMalformed)])
	}
	if len(e.History()) != 0 || len(e.LatestAll()) != 0 {
		t.Fatalf("malformed events must not touch caches")
	}
}

// Lifecycle walkthrough with maxPerDay=2 on one instrument: dedup suppresses
// the redelivery, the quota admits two distinct events and rejects the third.
func TestEngineDailyLifecycle(t *testing.T) {
	m := newFakeMetrics()
	e, now := newTestEngine(t, Config{Source: "fudkii", MaxPerDay: 2}, m, nil)
	ctx := context.Background()
	t0 := *now

	if ok, _ := e.Process(ctx, triggered("500325", t0)); !ok {
		t.Fatalf("first event must be accepted")
	}
	if e.QuotaUsed("500325") != 1 {
		t.Fatalf("quota after first accept = %d", e.QuotaUsed("500325"))
	}

	*now = t0.Add(2 * time.Minute)
	if ok, reason := e.Process(ctx, triggered("500325", t0)); ok || reason != models.RejectDuplicate {
		t.Fatalf("redelivery: ok=%v reason=%q", ok, reason)
	}
	if e.QuotaUsed("500325") != 1 {
		t.Fatalf("dedup rejection must not consume quota")
	}

	if ok, _ := e.Process(ctx, triggered("500325", t0.Add(time.Minute))); !ok {
		t.Fatalf("second distinct event must be accepted")
	}
	if ok, reason := e.Process(ctx, triggered("500325", t0.Add(2*time.Minute))); ok || reason != models.RejectQuota {
		t.Fatalf("third event: ok=%v reason=%q", ok, reason)
	}
	if e.QuotaUsed("500325") != 2 {
		t.Fatalf("quota rejection must not mutate the counter")
	}
	if n := len(e.History()); n != 2 {
		t.Fatalf("expected 2 history entries, got %d", n)
	}
	if m.accepted != 2 {
		t.Fatalf("expected 2 accepted, got %d", m.accepted)
	}
}

func TestEngineActiveTTLExpiry(t *testing.T) {
	e, now := newTestEngine(t, Config{Source: "fudkii", TTL: 30 * time.Minute}, nil, nil)
	t0 := *now

	e.Process(context.Background(), triggered("500325", t0))
	if _, ok := e.Active("500325"); !ok {
		t.Fatalf("expected active trigger before TTL")
	}

	*now = t0.Add(31 * time.Minute)
	if _, ok := e.Active("500325"); ok {
		t.Fatalf("expected active trigger expired")
	}
	// Latest and history are untouched by TTL expiry.
	if _, ok := e.Latest("500325"); !ok {
		t.Fatalf("expected latest retained")
	}
	if len(e.History()) != 1 {
		t.Fatalf("expected history retained")
	}
}

func TestEngineUntriggerInvalidatesActiveOnly(t *testing.T) {
	e, now := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)
	ctx := context.Background()
	t0 := *now

	e.Process(ctx, triggered("500325", t0))

	off := triggered("500325", t0.Add(time.Minute))
	off.Triggered = false
	if ok, reason := e.Process(ctx, off); ok || reason != models.RejectUntrigger {
		t.Fatalf("untrigger: ok=%v reason=%q", ok, reason)
	}

	if _, ok := e.Active("500325"); ok {
		t.Fatalf("expected active entry invalidated")
	}
	got, ok := e.Latest("500325")
	if !ok || !got.Triggered {
		t.Fatalf("latest must keep the last real trigger, got %+v", got)
	}
}

func TestEngineDailyResetScope(t *testing.T) {
	e, now := newTestEngine(t, Config{Source: "fudkii", MaxPerDay: 1, TTL: 30 * time.Minute}, nil, nil)
	ctx := context.Background()

	// Trigger shortly before the exchange-local midnight so the active entry
	// is still within its TTL when the date rolls.
	t0 := time.Date(2025, 6, 2, 23, 45, 0, 0, time.UTC)
	*now = t0

	e.Process(ctx, triggered("500325", t0))
	if ok, _ := e.Process(ctx, triggered("500325", t0.Add(time.Minute))); ok {
		t.Fatalf("expected cap hit")
	}

	// Cross the exchange-local midnight; the active entry is still within TTL.
	*now = time.Date(2025, 6, 3, 0, 0, 5, 0, time.UTC)
	if ok, _ := e.Process(ctx, triggered("532540", *now)); !ok {
		t.Fatalf("event on new date must be accepted")
	}

	if len(e.History()) != 1 {
		t.Fatalf("history must contain only the new date's entry, got %d", len(e.History()))
	}
	if _, ok := e.Latest("500325"); ok {
		t.Fatalf("latest must be cleared by the daily reset")
	}
	// Active entries ride out their own TTLs across the rollover.
	if _, ok := e.Active("500325"); !ok {
		t.Fatalf("unexpired active trigger must survive the daily reset")
	}
	// The cleared quota re-admits the capped instrument.
	if ok, _ := e.Process(ctx, triggered("500325", now.Add(time.Minute))); !ok {
		t.Fatalf("new date must re-admit after quota reset")
	}
}

func TestEngineTriggerTimeFallback(t *testing.T) {
	e, now := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)

	ev := &models.SignalEvent{Instrument: "500325", Triggered: true, Direction: "LONG"}
	if ok, _ := e.Process(context.Background(), ev); !ok {
		t.Fatalf("expected accept")
	}
	got, _ := e.Latest("500325")
	if got.TriggerTime != util.EpochMillis(*now) {
		t.Fatalf("expected ingestion-time fallback, got %d", got.TriggerTime)
	}
}

func TestEngineSecondsTimestampNormalized(t *testing.T) {
	e, now := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)

	ev := triggered("500325", *now)
	ev.TriggerTime = now.Unix() // seconds, not millis
	e.Process(context.Background(), ev)

	got, _ := e.Latest("500325")
	if got.TriggerTime != now.Unix()*1000 {
		t.Fatalf("expected millis, got %d", got.TriggerTime)
	}
}

func TestEngineRegistrarFailureDoesNotRollBack(t *testing.T) {
	m := newFakeMetrics()
	reg := &failRegistrar{}
	e, now := newTestEngine(t, Config{Source: "fudkii"}, m, reg)

	ok, _ := e.Process(context.Background(), triggered("500325", *now))
	if !ok {
		t.Fatalf("registrar failure must not reject the event")
	}
	if reg.calls != 1 {
		t.Fatalf("expected exactly one forward attempt, got %d", reg.calls)
	}
	if _, live := e.Active("500325"); !live {
		t.Fatalf("expected acceptance to stand")
	}
	if m.errors["registrar_forward"] != 1 {
		t.Fatalf("expected forward failure recorded")
	}
}

func TestEnginePersistRestoreRoundTrip(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e, now := newTestEngine(t, Config{Source: "fudkii", TTL: 30 * time.Minute}, nil, nil)
	t0 := *now
	e.Process(ctx, triggered("500325", t0))
	e.Process(ctx, triggered("532540", t0))
	e.Persist(ctx, store)

	// A replacement engine ten minutes later picks everything back up with
	// the remaining TTL intact.
	e2, now2 := newTestEngine(t, Config{Source: "fudkii", TTL: 30 * time.Minute}, nil, nil)
	*now2 = t0.Add(10 * time.Minute)
	e2.Restore(ctx, store)

	if len(e2.ActiveSnapshot()) != 2 {
		t.Fatalf("expected 2 active restored, got %d", len(e2.ActiveSnapshot()))
	}
	if len(e2.LatestAll()) != 2 || len(e2.History()) != 2 {
		t.Fatalf("expected latest and history restored")
	}

	// The restored entry expires at its original deadline, not TTL after restore.
	*now2 = t0.Add(31 * time.Minute)
	if _, ok := e2.Active("500325"); ok {
		t.Fatalf("restored entry must keep its original expiry")
	}
}

func TestEngineRestoreSkipsStaleActive(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e, now := newTestEngine(t, Config{Source: "fudkii", TTL: 30 * time.Minute}, nil, nil)
	t0 := *now
	e.Process(ctx, triggered("500325", t0))
	e.Persist(ctx, store)

	e2, now2 := newTestEngine(t, Config{Source: "fudkii", TTL: 30 * time.Minute}, nil, nil)
	*now2 = t0.Add(45 * time.Minute)
	e2.Restore(ctx, store)

	if n := len(e2.ActiveSnapshot()); n != 0 {
		t.Fatalf("expected stale active entries dropped, got %d", n)
	}
	if _, ok := e2.Latest("500325"); !ok {
		t.Fatalf("latest must survive a stale active entry")
	}
	if len(e2.History()) != 1 {
		t.Fatalf("history must survive a stale active entry")
	}
}

func TestEngineProcessAfterRestoreKeepsRestoredState(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e, now := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)
	t0 := *now
	e.Process(ctx, triggered("500325", t0))
	e.Persist(ctx, store)

	// Restart on the same trading date: restore, then accept one event for a
	// different instrument. The first event must not look like a date
	// rollover and wipe what restore just repopulated.
	e2, now2 := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)
	*now2 = t0.Add(10 * time.Minute)
	e2.Restore(ctx, store)
	if ok, _ := e2.Process(ctx, triggered("532540", *now2)); !ok {
		t.Fatalf("expected accept after restore")
	}

	if _, ok := e2.Latest("500325"); !ok {
		t.Fatalf("restored latest entry wiped by first same-date event")
	}
	if n := len(e2.History()); n != 2 {
		t.Fatalf("expected restored plus new history entries, got %d", n)
	}
	if _, ok := e2.Active("500325"); !ok {
		t.Fatalf("restored active entry lost")
	}

	// A genuine date change after restore still resets as usual.
	*now2 = time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	if ok, _ := e2.Process(ctx, triggered("500325", *now2)); !ok {
		t.Fatalf("expected accept on new date")
	}
	if n := len(e2.History()); n != 1 {
		t.Fatalf("daily reset must still clear history on a real rollover, got %d", n)
	}
}

func TestEngineRestoreInsertIfAbsent(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	e, now := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)
	t0 := *now
	e.Process(ctx, triggered("500325", t0))
	e.Persist(ctx, store)

	// The replacement engine accepts a fresher event before restore runs.
	e2, _ := newTestEngine(t, Config{Source: "fudkii"}, nil, nil)
	fresh := triggered("500325", t0.Add(time.Minute))
	fresh.Direction = "SHORT"
	e2.Process(ctx, fresh)
	e2.Restore(ctx, store)

	got, _ := e2.Latest("500325")
	if got.Direction != "SHORT" {
		t.Fatalf("restore must not clobber a live record, got %+v", got)
	}
	if active, ok := e2.Active("500325"); !ok || active.Direction != "SHORT" {
		t.Fatalf("restore must not clobber a live active entry, got %+v", active)
	}
	// Both the restored and the live event appear in history (distinct keys).
	if len(e2.History()) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(e2.History()))
	}
}

func TestEnginePersistFailureIsSwallowed(t *testing.T) {
	m := newFakeMetrics()
	store := newMemStore()
	store.fail = true

	e, now := newTestEngine(t, Config{Source: "fudkii"}, m, nil)
	e.Process(context.Background(), triggered("500325", *now))
	e.Persist(context.Background(), store)

	if m.errors["persist_active"] != 1 || m.errors["persist_latest"] != 1 || m.errors["persist_history"] != 1 {
		t.Fatalf("expected all three persist failures recorded, got %v", m.errors)
	}
	// Ingestion keeps working.
	if ok, _ := e.Process(context.Background(), triggered("532540", *now)); !ok {
		t.Fatalf("persist failure must not break ingestion")
	}
}

func TestEngineRestoreFailureStartsEmpty(t *testing.T) {
	m := newFakeMetrics()
	store := newMemStore()
	store.fail = true

	e, _ := newTestEngine(t, Config{Source: "fudkii"}, m, nil)
	e.Restore(context.Background(), store)

	if len(e.ActiveSnapshot()) != 0 || len(e.LatestAll()) != 0 || len(e.History()) != 0 {
		t.Fatalf("expected empty caches after failed restore")
	}
	if m.errors["restore_active"] != 1 {
		t.Fatalf("expected restore failure recorded")
	}
}
