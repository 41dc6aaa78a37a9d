// Package metrics defines the sinks sensor state is recorded to. Sinks like
// PromSink and InfluxSink record sensor snapshots and refresh cycles and can
// be combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
package metrics
