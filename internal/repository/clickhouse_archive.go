package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SignalDeck/internal/domain/models"
)

// ArchiveSchema creates the archive table. Passed to the ClickHouse client's
// InitSchema at startup when archiving is enabled.
func ArchiveSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			source String,
			instrument String,
			direction String,
			trigger_time DateTime64(3),
			accepted_at DateTime64(3),
			fields String
		) ENGINE=MergeTree ORDER BY (source, instrument, trigger_time)`, table),
	}
}

// ClickHouseArchive appends every accepted record to a ClickHouse table so
// signal history survives past the 24h durable-store window. Best-effort:
// the engine swallows archive errors.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates an archive writer against table.
func NewClickHouseArchive(db *sql.DB, table string) *ClickHouseArchive {
	return &ClickHouseArchive{db: db, table: table}
}

func (a *ClickHouseArchive) Archive(ctx context.Context, rec *models.SignalRecord) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	q := fmt.Sprintf("INSERT INTO %s (source, instrument, direction, trigger_time, accepted_at, fields) VALUES (?, ?, ?, ?, ?, ?)", a.table)
	_, err = a.db.ExecContext(ctx, q,
		rec.Source,
		rec.Instrument,
		rec.Direction,
		time.UnixMilli(rec.TriggerTime),
		time.UnixMilli(rec.AcceptedAt),
		string(fields),
	)
	return err
}

func (a *ClickHouseArchive) Close() error {
	return nil // pool is owned by the clickhouse client
}
