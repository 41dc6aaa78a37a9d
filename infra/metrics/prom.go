package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/cdsensor/core/metrics"
	"github.com/kilianp07/cdsensor/core/sensor"
)

// PromSink records sensor states in Prometheus metrics.
type PromSink struct {
	state     *prometheus.GaugeVec
	available *prometheus.GaugeVec
	failures  *prometheus.CounterVec
	refresh   prometheus.Histogram
	entities  prometheus.Gauge
}

// NewPromSink registers sensor metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately, see Handler.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sensor_state",
		Help: "Numeric state of a sensor entity",
	}, []string{"vin", "service", "attribute", "unit"})
	available := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sensor_available",
		Help: "1 when the sensor entity holds a value, 0 otherwise",
	}, []string{"vin", "service", "attribute"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensor_update_failures_total",
		Help: "Number of failed sensor updates",
	}, []string{"vin", "service", "attribute"})
	refresh := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "platform_refresh_duration_seconds",
		Help:    "Duration of a full entity refresh cycle",
		Buckets: prometheus.DefBuckets,
	})
	entities := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "platform_entities",
		Help: "Number of hosted sensor entities",
	})

	var err error
	if state, err = register(reg, state); err != nil {
		return nil, err
	}
	if available, err = register(reg, available); err != nil {
		return nil, err
	}
	if failures, err = register(reg, failures); err != nil {
		return nil, err
	}
	if refresh, err = register(reg, refresh); err != nil {
		return nil, err
	}
	if entities, err = register(reg, entities); err != nil {
		return nil, err
	}
	return &PromSink{state: state, available: available, failures: failures, refresh: refresh, entities: entities}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSensorState sets the state and availability gauges. Non-numeric
// states only update availability.
func (s *PromSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	avail := 0.0
	if ev.Available {
		avail = 1
	}
	s.available.WithLabelValues(ev.VIN, ev.Service, ev.Attribute).Set(avail)
	if ev.Error != "" {
		s.failures.WithLabelValues(ev.VIN, ev.Service, ev.Attribute).Inc()
	}
	if !ev.Available {
		return nil
	}
	if f, ok := sensor.Numeric(ev.State); ok {
		s.state.WithLabelValues(ev.VIN, ev.Service, ev.Attribute, ev.Unit).Set(f)
	}
	return nil
}

// RecordRefresh observes the refresh duration and the entity count.
func (s *PromSink) RecordRefresh(ev coremetrics.RefreshEvent) error {
	s.refresh.Observe(ev.Duration.Seconds())
	s.entities.Set(float64(ev.Entities))
	return nil
}

// Handler serves the metrics gathered by g, or the default gatherer when g
// is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
