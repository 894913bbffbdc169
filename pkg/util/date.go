package util

import "time"

// TradingDateLayout is the canonical trading-date form used in quota keys
// and durable-store namespaces.
const TradingDateLayout = "2006-01-02"

// TradingDate formats t as a trading date in the exchange time zone.
// The boundary is the exchange's local midnight, never server-local or UTC.
func TradingDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TradingDateLayout)
}

// EpochMillis converts t to unix epoch milliseconds.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts epoch milliseconds to a time.Time.
// Values that look like seconds (pre-2001 in millis) are upscaled.
func FromEpochMillis(ms int64) time.Time {
	if ms > 0 && ms < 1e11 { // seconds, not millis
		return time.Unix(ms, 0)
	}
	return time.UnixMilli(ms)
}

// NormalizeEpochMillis coerces a producer timestamp to milliseconds,
// accepting either seconds or milliseconds.
func NormalizeEpochMillis(ts int64) int64 {
	if ts > 0 && ts < 1e11 {
		return ts * 1000
	}
	return ts
}
