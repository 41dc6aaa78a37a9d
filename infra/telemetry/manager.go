// Package telemetry receives vehicle snapshots over MQTT, either pushed by
// the vehicle bridge or requested on every poll.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/cdsensor/config"
	"github.com/kilianp07/cdsensor/core/logger"
	"github.com/kilianp07/cdsensor/core/vehicle"
)

// Client is the part of the MQTT client the manager needs.
type Client interface {
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Store receives decoded snapshots.
type Store interface {
	Set(v *vehicle.Vehicle)
}

// Manager collects vehicle snapshots from MQTT.
type Manager struct {
	cfg   config.TelemetryConfig
	cli   Client
	store Store
	log   logger.Logger

	respCh chan telemetryMessage

	received    *prometheus.CounterVec
	rejected    prometheus.Counter
	pollTimeout prometheus.Counter
	lastCollect prometheus.Gauge
}

type telemetryMessage struct {
	VIN     string
	Payload []byte
	Arrived time.Time
}

// NewManager prepares snapshot collection. Metrics are registered on reg,
// or on the default registerer when reg is nil.
func NewManager(cli Client, cfg config.TelemetryConfig, store Store, log logger.Logger, reg prometheus.Registerer) (*Manager, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Manager{
		cfg:    cfg,
		cli:    cli,
		store:  store,
		log:    log,
		respCh: make(chan telemetryMessage, 100),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_messages_total",
			Help: "Number of vehicle snapshots received over MQTT",
		}, []string{"mode"}),
		rejected:    prometheus.NewCounter(prometheus.CounterOpts{Name: "snapshot_rejected_total", Help: "Number of snapshots that could not be decoded"}),
		pollTimeout: prometheus.NewCounter(prometheus.CounterOpts{Name: "snapshot_poll_timeout_total", Help: "Number of snapshot polls that ended before every vehicle answered"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{Name: "snapshot_last_collect_timestamp_seconds", Help: "Unix timestamp of the last decoded snapshot"}),
	}
	var err error
	if m.received, err = register(reg, m.received); err != nil {
		return nil, err
	}
	if m.rejected, err = register(reg, m.rejected); err != nil {
		return nil, err
	}
	if m.pollTimeout, err = register(reg, m.pollTimeout); err != nil {
		return nil, err
	}
	if m.lastCollect, err = register(reg, m.lastCollect); err != nil {
		return nil, err
	}
	return m, nil
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

// Start subscribes to the state and response topics of the configured mode.
func (m *Manager) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Pushes() {
		topic := strings.TrimSuffix(m.cfg.StatePrefix, "/") + "/+"
		if err := m.cli.Subscribe(topic, m.cfg.QoS, m.onPush); err != nil {
			return fmt.Errorf("subscribe state: %w", err)
		}
	}
	if m.cfg.Pulls() {
		topic := strings.TrimSuffix(m.cfg.ResponsePrefix, "/") + "/+"
		if err := m.cli.Subscribe(topic, m.cfg.QoS, m.onResponse); err != nil {
			return fmt.Errorf("subscribe response: %w", err)
		}
	}
	return nil
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	v, err := m.process(msg.Payload(), msg.Topic())
	if err != nil {
		m.log.Errorf("push decode: %v", err)
		return
	}
	m.received.WithLabelValues("push").Inc()
	m.store.Set(v)
}

func (m *Manager) onResponse(_ paho.Client, msg paho.Message) {
	select {
	case m.respCh <- telemetryMessage{VIN: extractID(msg.Topic()), Payload: msg.Payload(), Arrived: time.Now()}:
	default:
		m.log.Warnf("dropping snapshot response on %s", msg.Topic())
	}
}

func extractID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}

// Load publishes a snapshot request and collects responses until every
// expected VIN answered or the timeout elapsed. An empty expect list waits
// for the full timeout.
func (m *Manager) Load(ctx context.Context) ([]*vehicle.Vehicle, error) {
	return m.poll(ctx, nil)
}

// LoadVINs is Load with an expected VIN list.
func (m *Manager) LoadVINs(ctx context.Context, expect []string) ([]*vehicle.Vehicle, error) {
	return m.poll(ctx, expect)
}

func (m *Manager) poll(ctx context.Context, expect []string) ([]*vehicle.Vehicle, error) {
	expected := map[string]struct{}{}
	for _, vin := range expect {
		expected[strings.ToUpper(vin)] = struct{}{}
	}
	m.drain()
	requested := time.Now()
	if err := m.cli.Publish(m.cfg.RequestTopic, m.cfg.QoS, false, []byte("poll")); err != nil {
		return nil, fmt.Errorf("snapshot request: %w", err)
	}
	timeout := time.NewTimer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	var out []*vehicle.Vehicle
	for {
		select {
		case resp := <-m.respCh:
			if resp.Arrived.Before(requested) {
				continue
			}
			v, err := m.process(resp.Payload, resp.VIN)
			if err != nil {
				m.log.Errorf("poll decode: %v", err)
				continue
			}
			m.received.WithLabelValues("pull").Inc()
			out = append(out, v)
			delete(expected, v.VIN)
			if len(expect) > 0 && len(expected) == 0 {
				return out, nil
			}
		case <-timeout.C:
			if len(expected) > 0 {
				m.pollTimeout.Inc()
				m.log.Warnf("snapshot poll timed out waiting for %d vehicles", len(expected))
			}
			return out, nil
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// drain discards responses that arrived after an earlier poll returned.
func (m *Manager) drain() {
	for {
		select {
		case resp := <-m.respCh:
			m.log.Debugf("discarding late snapshot response of %s", resp.VIN)
		default:
			return
		}
	}
}

// process decodes one snapshot document. A document without a VIN takes the
// last topic level as VIN.
func (m *Manager) process(payload []byte, topic string) (*vehicle.Vehicle, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		m.rejected.Inc()
		return nil, err
	}
	if vin, _ := raw["vin"].(string); vin == "" {
		if id := extractID(topic); id != "" {
			raw["vin"] = id
		}
	}
	v, err := vehicle.Decode(raw)
	if err != nil {
		m.rejected.Inc()
		return nil, err
	}
	m.lastCollect.SetToCurrentTime()
	return v, nil
}
