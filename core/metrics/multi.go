package metrics

// MultiSink fans sensor events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSensorState forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSensorState(ev SensorStateEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSensorState(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRefresh forwards refresh cycles to the sinks that record them.
func (m *MultiSink) RecordRefresh(ev RefreshEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RefreshRecorder); ok {
			if err := rec.RecordRefresh(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
