package metrics

import "time"

// SensorStateEvent is the state of one sensor entity after an update.
type SensorStateEvent struct {
	UniqueID  string
	VIN       string
	Service   string
	Attribute string
	State     any
	Unit      string
	Available bool
	// Error holds the update failure, empty on success.
	Error string
	Time  time.Time
}

// MetricsSink records sensor states for observability purposes.
type MetricsSink interface {
	RecordSensorState(ev SensorStateEvent) error
}

// RefreshEvent summarises one platform refresh cycle.
type RefreshEvent struct {
	Entities int
	Failures int
	Duration time.Duration
	Time     time.Time
}

// RefreshRecorder records refresh cycles.
type RefreshRecorder interface {
	RecordRefresh(ev RefreshEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSensorState(SensorStateEvent) error { return nil }
func (NopSink) RecordRefresh(RefreshEvent) error         { return nil }
