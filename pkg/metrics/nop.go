package metrics

// NopRecorder discards every observation. It keeps tests off the global
// Prometheus registry.
type NopRecorder struct{}

func Nop() NopRecorder { return NopRecorder{} }

func (NopRecorder) RecordAccepted(source, instrument string) {}
func (NopRecorder) RecordRejected(source, reason string)     {}
func (NopRecorder) RecordActiveSize(source string, n int)    {}
func (NopRecorder) RecordEviction(source string)             {}
func (NopRecorder) RecordLatency(op string, seconds float64) {}
func (NopRecorder) RecordError(kind string)                  {}
