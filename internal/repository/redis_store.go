package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalDeck/internal/domain/models"
	"SignalDeck/internal/domain/repository"
	"SignalDeck/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const latestExpiry = 24 * time.Hour // also covers history namespaces

// RedisStore implements DurableStore on Redis hashes.
//
// Key layout per source:
//
//	{prefix}:{source}:active-triggers        whole-map overwrite, expiry = active TTL
//	{prefix}:{source}:all-latest             whole-map overwrite, 24h expiry
//	{prefix}:{source}:signal-history:{date}  incremental adds, 24h expiry
//
// Every call is bounded by a timeout so a store outage can never stall
// event ingestion.
type RedisStore struct {
	client      *redis.Client
	log         *logger.Logger
	prefix      string
	activeTTL   time.Duration
	callTimeout time.Duration
}

// NewRedisStore creates a store adapter. activeTTL must equal the engine's
// Active Trigger TTL so the server-side expiry mirrors the in-memory one.
func NewRedisStore(client *redis.Client, log *logger.Logger, prefix string, activeTTL, callTimeout time.Duration) *RedisStore {
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &RedisStore{
		client:      client,
		log:         log,
		prefix:      prefix,
		activeTTL:   activeTTL,
		callTimeout: callTimeout,
	}
}

func (s *RedisStore) PersistActive(ctx context.Context, source string, snap repository.Snapshot) error {
	return s.overwrite(ctx, s.activeKey(source), snap, s.activeTTL)
}

func (s *RedisStore) PersistLatest(ctx context.Context, source string, snap repository.Snapshot) error {
	return s.overwrite(ctx, s.latestKey(source), snap, latestExpiry)
}

// PersistHistory adds entries incrementally; history is append-only so
// fields are never removed, and old days age out via the key expiry.
func (s *RedisStore) PersistHistory(ctx context.Context, source, tradingDate string, snap repository.Snapshot) error {
	if len(snap) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	fields, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}

	key := s.historyKey(source, tradingDate)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, latestExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist history %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) RestoreActive(ctx context.Context, source string) (repository.Snapshot, error) {
	return s.readAll(ctx, s.activeKey(source))
}

func (s *RedisStore) RestoreLatest(ctx context.Context, source string) (repository.Snapshot, error) {
	return s.readAll(ctx, s.latestKey(source))
}

func (s *RedisStore) RestoreHistory(ctx context.Context, source, tradingDate string) (repository.Snapshot, error) {
	return s.readAll(ctx, s.historyKey(source, tradingDate))
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// overwrite replaces the whole hash in one transaction and refreshes its
// server-side expiry.
func (s *RedisStore) overwrite(ctx context.Context, key string, snap repository.Snapshot, expiry time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(snap) > 0 {
		fields, err := marshalSnapshot(snap)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, expiry)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// readAll loads a hash, skipping (and logging) individually corrupt entries
// so one bad record cannot abort a restore.
func (s *RedisStore) readAll(ctx context.Context, key string) (repository.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	snap := make(repository.Snapshot, len(raw))
	for field, val := range raw {
		var rec models.SignalRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			s.log.Warn("skipping corrupt store entry",
				logger.String("key", key),
				logger.String("field", field),
				logger.Error(err))
			continue
		}
		snap[field] = &rec
	}
	return snap, nil
}

func marshalSnapshot(snap repository.Snapshot) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(snap))
	for k, rec := range snap {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", k, err)
		}
		fields[k] = b
	}
	return fields, nil
}

func (s *RedisStore) activeKey(source string) string {
	return fmt.Sprintf("%s:%s:active-triggers", s.prefix, source)
}

func (s *RedisStore) latestKey(source string) string {
	return fmt.Sprintf("%s:%s:all-latest", s.prefix, source)
}

func (s *RedisStore) historyKey(source, tradingDate string) string {
	return fmt.Sprintf("%s:%s:signal-history:%s", s.prefix, source, tradingDate)
}
