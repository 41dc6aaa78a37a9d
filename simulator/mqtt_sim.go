package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/cdsensor/core/logger"
)

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// sendFunc publishes one retained or transient payload.
type sendFunc func(topic string, retained bool, payload []byte) error

func pahoSender(cli paho.Client) sendFunc {
	return func(topic string, retained bool, payload []byte) error {
		token := cli.Publish(topic, 0, retained, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish %s: timeout", topic)
		}
		return token.Error()
	}
}

// Bridge plays the vehicle side of the snapshot telemetry: it pushes every
// snapshot on the state topics and answers poll requests.
type Bridge struct {
	Vehicles []*SimulatedVehicle
	Cfg      Config
	send     sendFunc
	log      logger.Logger
}

// NewBridge creates a bridge publishing through send.
func NewBridge(vs []*SimulatedVehicle, cfg Config, send sendFunc, log logger.Logger) *Bridge {
	return &Bridge{Vehicles: vs, Cfg: cfg, send: send, log: log}
}

func topic(prefix, vin string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + vin
}

// PublishAll sends the current snapshot of every vehicle below prefix.
func (b *Bridge) PublishAll(prefix string, retained bool) error {
	for _, v := range b.Vehicles {
		payload, err := json.Marshal(v.Snapshot())
		if err != nil {
			return fmt.Errorf("marshal %s: %w", v.VIN, err)
		}
		if err := b.send(topic(prefix, v.VIN), retained, payload); err != nil {
			return err
		}
	}
	return nil
}

// OnRequest answers a poll request with the snapshots of the fleet.
func (b *Bridge) OnRequest(_ paho.Client, _ paho.Message) {
	if err := b.PublishAll(b.Cfg.ResponsePrefix, false); err != nil {
		b.log.Errorf("answer poll: %v", err)
	}
}

// Tick advances every vehicle and pushes the new snapshots when a state
// prefix is configured.
func (b *Bridge) Tick(dt time.Duration, now time.Time) error {
	for _, v := range b.Vehicles {
		v.Step(dt, now)
	}
	if b.Cfg.StatePrefix == "" {
		return nil
	}
	return b.PublishAll(b.Cfg.StatePrefix, true)
}

// Run ticks at the configured interval until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	if b.Cfg.StatePrefix != "" {
		if err := b.PublishAll(b.Cfg.StatePrefix, true); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(b.Cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := b.Tick(b.Cfg.Interval, now); err != nil {
				b.log.Errorf("tick: %v", err)
			}
		}
	}
}
