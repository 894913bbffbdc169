package repository

import (
	"context"

	"SignalDeck/internal/domain/models"
)

// Snapshot is a point-in-time copy of one cache namespace, keyed by
// instrument (active/latest) or history key (history).
type Snapshot map[string]*models.SignalRecord

// DurableStore persists cache snapshots to an external key-value store.
// It exists solely for crash/restart recovery; in-memory caches remain the
// source of truth while the store is unavailable.
type DurableStore interface {
	// PersistActive overwrites the active-triggers namespace wholesale.
	PersistActive(ctx context.Context, source string, snap Snapshot) error
	// PersistLatest overwrites the all-latest namespace wholesale.
	PersistLatest(ctx context.Context, source string, snap Snapshot) error
	// PersistHistory adds history entries incrementally under the trading date.
	PersistHistory(ctx context.Context, source, tradingDate string, snap Snapshot) error

	// RestoreActive reads back the active-triggers namespace.
	RestoreActive(ctx context.Context, source string) (Snapshot, error)
	// RestoreLatest reads back the all-latest namespace.
	RestoreLatest(ctx context.Context, source string) (Snapshot, error)
	// RestoreHistory reads back the history namespace for the trading date.
	RestoreHistory(ctx context.Context, source, tradingDate string) (Snapshot, error)

	Close() error
}

// Registrar receives every accepted, triggered record exactly once for
// cross-source aggregation. Forwarding is best-effort: a failure must not
// roll back cache acceptance and is never retried.
type Registrar interface {
	Register(ctx context.Context, rec *models.SignalRecord) error
	Close() error
}

// Archiver stores accepted records append-only for offline analytics.
type Archiver interface {
	Archive(ctx context.Context, rec *models.SignalRecord) error
	Close() error
}

// Metrics records engine observability counters and latencies.
type Metrics interface {
	RecordAccepted(source, instrument string)
	RecordRejected(source, reason string)
	RecordActiveSize(source string, n int)
	RecordEviction(source string)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
