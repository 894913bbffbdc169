package models

import (
	"fmt"
	"strconv"
)

// SignalEvent is a normalized inbound signal payload after source-specific parsing.
// Numeric fields from the producer are passed through untouched in Fields.
type SignalEvent struct {
	Instrument  string             `json:"instrument"`
	Triggered   bool               `json:"triggered"`
	Direction   string             `json:"direction"`
	TriggerTime int64              `json:"trigger_time"` // epoch millis, producer-asserted
	EmitTime    int64              `json:"emit_time"`    // epoch millis, producer emission time (optional)
	Fields      map[string]float64 `json:"fields"`
}

// DedupKey identifies one logical event for replay suppression.
// Composite so two real events on the same instrument with different trigger
// times are never conflated.
func (e *SignalEvent) DedupKey() string {
	if e.EmitTime > 0 {
		return e.Instrument + ":" + strconv.FormatInt(e.TriggerTime, 10) + ":" + strconv.FormatInt(e.EmitTime, 10)
	}
	return e.Instrument + ":" + strconv.FormatInt(e.TriggerTime, 10)
}

// SignalRecord is an accepted SignalEvent plus engine-managed metadata.
type SignalRecord struct {
	Source      string             `json:"source"`
	Instrument  string             `json:"instrument"`
	Direction   string             `json:"direction"`
	Triggered   bool               `json:"triggered"`
	TriggerTime int64              `json:"trigger_time"` // epoch millis
	AcceptedAt  int64              `json:"accepted_at"`  // epoch millis, ingestion time
	Fields      map[string]float64 `json:"fields,omitempty"`
}

// HistoryKey is the append-log entry id: stable and unique per real-world event.
func (r *SignalRecord) HistoryKey() string {
	return fmt.Sprintf("%s:%d", r.Instrument, r.TriggerTime)
}

// RejectReason classifies why an inbound event was not admitted.
type RejectReason string

const (
	RejectNone      RejectReason = ""
	RejectDuplicate RejectReason = "duplicate"
	RejectQuota     RejectReason = "quota"
	RejectMalformed RejectReason = "malformed"
	RejectUntrigger RejectReason = "not_triggered"
)
