package engine

import (
	"context"
	"time"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/domain/repository"
	"SignalDeck/pkg/logger"
	"SignalDeck/pkg/util"
)

// Config holds per-source engine settings.
type Config struct {
	Source          string
	TTL             time.Duration // active trigger expiry-after-write
	MaxPerDay       int           // daily quota ceiling per instrument
	MaxActive       int           // active cache entry cap
	DedupWindow     time.Duration
	DedupMaxEntries int
	MarketTZ        *time.Location
}

func (c *Config) fillDefaults() {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = 5
	}
	if c.MaxActive <= 0 {
		c.MaxActive = 500
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 5 * time.Minute
	}
	if c.DedupMaxEntries <= 0 {
		c.DedupMaxEntries = 10000
	}
	if c.MarketTZ == nil {
		c.MarketTZ = time.UTC
	}
}

// Engine is the signal lifecycle controller for one source: it runs every
// inbound event through dedup and quota admission, maintains the active,
// latest and history caches, and bridges them to the durable store.
type Engine struct {
	cfg       Config
	log       *logger.Logger
	metrics   repository.Metrics
	registrar repository.Registrar
	archiver  repository.Archiver

	dedup   *DedupFilter
	quota   *QuotaTracker
	active  *ActiveCache
	history *HistoryLog
	latest  *LatestCache

	now func() time.Time
}

// New creates an engine for cfg.Source. registrar and archiver may be nil.
func New(cfg Config, log *logger.Logger, metrics repository.Metrics, registrar repository.Registrar, archiver repository.Archiver) *Engine {
	cfg.fillDefaults()

	e := &Engine{
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
		registrar: registrar,
		archiver:  archiver,
		dedup:     NewDedupFilter(cfg.DedupWindow, cfg.DedupMaxEntries),
		history:   NewHistoryLog(),
		latest:    NewLatestCache(),
		now:       time.Now,
	}

	e.active = NewActiveCache(cfg.MaxActive, func(instrument, reason string) {
		e.metrics.RecordEviction(cfg.Source)
		e.log.Debug("active trigger evicted",
			logger.String("source", cfg.Source),
			logger.String("instrument", instrument),
			logger.String("reason", reason))
	})

	// Date rollover clears quota counters first, then history, then latest.
	// The active cache is left to its own TTLs; a trigger from 23:55 may
	// legitimately still be live at 00:05.
	e.quota = NewQuotaTracker(func(tradingDate string) {
		e.history.Reset()
		e.latest.Reset()
		e.log.Info("daily reset",
			logger.String("source", cfg.Source),
			logger.String("trading_date", tradingDate))
	})

	return e
}

// Source returns the engine's source tag.
func (e *Engine) Source() string { return e.cfg.Source }

// TradingDate returns the current trading date in the exchange time zone.
func (e *Engine) TradingDate() string {
	return util.TradingDate(e.now(), e.cfg.MarketTZ)
}

// Process runs one inbound event through the admission pipeline.
// Returns whether the event was accepted and, if not, why.
func (e *Engine) Process(ctx context.Context, ev *models.SignalEvent) (bool, models.RejectReason) {
	if ev == nil || ev.Instrument == "" {
		e.metrics.RecordRejected(e.cfg.Source, string(models.RejectMalformed))
		e.log.Warn("dropping malformed signal event", logger.String("source", e.cfg.Source))
		return false, models.RejectMalformed
	}

	now := e.now()
	if ev.TriggerTime == 0 {
		// Producer omitted event time; fall back to ingestion time.
		ev.TriggerTime = util.EpochMillis(now)
	}
	ev.TriggerTime = util.NormalizeEpochMillis(ev.TriggerTime)

	tradingDate := util.TradingDate(now, e.cfg.MarketTZ)
	e.quota.Roll(tradingDate)

	if !ev.Triggered {
		// "No longer triggered" updates only shrink the active set; the
		// latest cache keeps the last real trigger for display.
		e.active.Invalidate(ev.Instrument)
		e.metrics.RecordActiveSize(e.cfg.Source, e.active.Len())
		return false, models.RejectUntrigger
	}

	if !e.dedup.Admit(ev.DedupKey()) {
		e.metrics.RecordRejected(e.cfg.Source, string(models.RejectDuplicate))
		e.log.Debug("duplicate delivery suppressed",
			logger.String("source", e.cfg.Source),
			logger.String("instrument", ev.Instrument),
			logger.Int64("trigger_time", ev.TriggerTime))
		return false, models.RejectDuplicate
	}

	accepted, countAfter := e.quota.TryReserve(ev.Instrument, tradingDate, e.cfg.MaxPerDay)
	if !accepted {
		e.metrics.RecordRejected(e.cfg.Source, string(models.RejectQuota))
		e.log.Debug("daily quota reached",
			logger.String("source", e.cfg.Source),
			logger.String("instrument", ev.Instrument),
			logger.Int("count", countAfter))
		return false, models.RejectQuota
	}

	rec := &models.SignalRecord{
		Source:      e.cfg.Source,
		Instrument:  ev.Instrument,
		Direction:   ev.Direction,
		Triggered:   true,
		TriggerTime: ev.TriggerTime,
		AcceptedAt:  util.EpochMillis(now),
		Fields:      ev.Fields,
	}

	e.active.Put(rec.Instrument, rec, e.cfg.TTL)
	e.history.Append(rec.HistoryKey(), rec)
	e.latest.Update(rec.Instrument, rec)

	e.metrics.RecordAccepted(e.cfg.Source, rec.Instrument)
	e.metrics.RecordActiveSize(e.cfg.Source, e.active.Len())
	e.log.Info("signal accepted",
		logger.String("source", e.cfg.Source),
		logger.String("instrument", rec.Instrument),
		logger.String("direction", rec.Direction),
		logger.Int("daily_count", countAfter))

	e.forward(ctx, rec)
	return true, models.RejectNone
}

// forward pushes rec to the curated registrar and the archive, at most once
// each. Failures are logged and never roll back acceptance.
func (e *Engine) forward(ctx context.Context, rec *models.SignalRecord) {
	if e.registrar != nil {
		if err := e.registrar.Register(ctx, rec); err != nil {
			e.metrics.RecordError("registrar_forward")
			e.log.Warn("curated registrar forward failed",
				logger.String("source", e.cfg.Source),
				logger.String("instrument", rec.Instrument),
				logger.Error(err))
		}
	}
	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, rec); err != nil {
			e.metrics.RecordError("archive")
			e.log.Warn("signal archive failed",
				logger.String("source", e.cfg.Source),
				logger.Error(err))
		}
	}
}

// --- Read accessors ---

// Active returns the live trigger for instrument, if unexpired.
func (e *Engine) Active(instrument string) (*models.SignalRecord, bool) {
	return e.active.Get(instrument)
}

// ActiveSnapshot copies all unexpired live triggers.
func (e *Engine) ActiveSnapshot() repository.Snapshot {
	return e.active.Snapshot()
}

// Latest returns the last accepted trigger for instrument.
func (e *Engine) Latest(instrument string) (*models.SignalRecord, bool) {
	return e.latest.Get(instrument)
}

// LatestAll copies the latest cache.
func (e *Engine) LatestAll() repository.Snapshot {
	return e.latest.Snapshot()
}

// History copies the intraday append log.
func (e *Engine) History() repository.Snapshot {
	return e.history.Snapshot()
}

// QuotaUsed reports today's accepted count for instrument.
func (e *Engine) QuotaUsed(instrument string) int {
	return e.quota.Used(instrument, e.TradingDate())
}

// --- Durable store bridge ---

// Persist snapshots the three caches to the durable store. Failures are
// logged and swallowed; durability is degraded until the store recovers.
func (e *Engine) Persist(ctx context.Context, store repository.DurableStore) {
	start := e.now()
	source := e.cfg.Source

	if err := store.PersistActive(ctx, source, e.active.Snapshot()); err != nil {
		e.metrics.RecordError("persist_active")
		e.log.Warn("persist active triggers failed", logger.String("source", source), logger.Error(err))
	}
	if err := store.PersistLatest(ctx, source, e.latest.Snapshot()); err != nil {
		e.metrics.RecordError("persist_latest")
		e.log.Warn("persist latest failed", logger.String("source", source), logger.Error(err))
	}
	if err := store.PersistHistory(ctx, source, e.TradingDate(), e.history.Snapshot()); err != nil {
		e.metrics.RecordError("persist_history")
		e.log.Warn("persist history failed", logger.String("source", source), logger.Error(err))
	}

	e.metrics.RecordLatency("persist", e.now().Sub(start).Seconds())
}

// Restore walks store snapshots back into the caches. Runs once at startup,
// before the first inbound event. Active entries past their TTL are dropped
// rather than resurrected; latest and history restore insert-if-absent.
func (e *Engine) Restore(ctx context.Context, store repository.DurableStore) {
	start := e.now()
	source := e.cfg.Source
	now := e.now()

	// Prime the quota date cell so the first event processed after restart
	// on the same trading date is not mistaken for a date rollover, which
	// would wipe the history and latest caches repopulated below.
	e.quota.Roll(e.TradingDate())

	activeSnap, err := store.RestoreActive(ctx, source)
	if err != nil {
		e.metrics.RecordError("restore_active")
		e.log.Warn("restore active triggers failed, starting empty", logger.String("source", source), logger.Error(err))
	}
	restored, stale := 0, 0
	for instrument, rec := range activeSnap {
		age := now.Sub(util.FromEpochMillis(rec.AcceptedAt))
		if age >= e.cfg.TTL {
			stale++
			continue
		}
		if _, live := e.active.Get(instrument); live {
			// An event accepted since startup outranks the snapshot.
			continue
		}
		e.active.Put(instrument, rec, e.cfg.TTL-age)
		restored++
	}

	latestSnap, err := store.RestoreLatest(ctx, source)
	if err != nil {
		e.metrics.RecordError("restore_latest")
		e.log.Warn("restore latest failed, starting empty", logger.String("source", source), logger.Error(err))
	}
	for instrument, rec := range latestSnap {
		e.latest.PutIfAbsent(instrument, rec)
	}

	historySnap, err := store.RestoreHistory(ctx, source, e.TradingDate())
	if err != nil {
		e.metrics.RecordError("restore_history")
		e.log.Warn("restore history failed, starting empty", logger.String("source", source), logger.Error(err))
	}
	for key, rec := range historySnap {
		e.history.Append(key, rec)
	}

	e.metrics.RecordLatency("restore", e.now().Sub(start).Seconds())
	e.log.Info("engine restored",
		logger.String("source", source),
		logger.Int("active", restored),
		logger.Int("active_stale_dropped", stale),
		logger.Int("latest", e.latest.Len()),
		logger.Int("history", e.history.Len()))
}

// Close releases background resources.
func (e *Engine) Close() {
	e.active.Close()
}

// SetClock overrides the engine clock, including the clocks of the internal
// caches. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.dedup.now = now
	e.active.now = now
}
