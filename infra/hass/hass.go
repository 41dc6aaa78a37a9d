// Package hass publishes sensor entities to Home Assistant using MQTT
// discovery.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kilianp07/cdsensor/config"
	"github.com/kilianp07/cdsensor/core/logger"
	coremqtt "github.com/kilianp07/cdsensor/core/mqtt"
	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/core/sensor"
	"github.com/kilianp07/cdsensor/internal/eventbus"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Device groups entities of one vehicle in the Home Assistant device registry.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// Discovery is the retained config document of one sensor.
type Discovery struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	ObjectID            string `json:"object_id"`
	Icon                string `json:"icon,omitempty"`
	Unit                string `json:"unit_of_measurement,omitempty"`
	StateTopic          string `json:"state_topic"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	Device              Device `json:"device"`
}

// Publisher mirrors platform snapshots to MQTT.
type Publisher struct {
	pub coremqtt.Publisher
	cfg config.HassConfig
	log logger.Logger

	mu    sync.Mutex
	icons map[string]string
}

// New creates a Publisher. cfg is expected to carry its defaults.
func New(pub coremqtt.Publisher, cfg config.HassConfig, log logger.Logger) *Publisher {
	return &Publisher{pub: pub, cfg: cfg, log: log, icons: map[string]string{}}
}

// ObjectID is the Home Assistant object id of a snapshot. It is unique per
// bridge because it carries the VIN.
func ObjectID(s platform.Snapshot) string {
	return strings.ToLower(s.Device.VIN) + "_" + s.Descriptor.ObjectID()
}

// DiscoveryTopic returns the config topic of a snapshot.
func (p *Publisher) DiscoveryTopic(s platform.Snapshot) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.cfg.DiscoveryPrefix, p.cfg.NodeID, ObjectID(s))
}

// StateTopic returns the topic a snapshot's state is published on.
func (p *Publisher) StateTopic(s platform.Snapshot) string {
	return fmt.Sprintf("%s/%s/%s/state", p.cfg.BaseTopic, s.Device.VIN, s.Descriptor.ObjectID())
}

// AvailabilityTopic returns the topic a snapshot's availability is
// published on.
func (p *Publisher) AvailabilityTopic(s platform.Snapshot) string {
	return fmt.Sprintf("%s/%s/%s/availability", p.cfg.BaseTopic, s.Device.VIN, s.Descriptor.ObjectID())
}

// Document builds the discovery document of a snapshot.
func (p *Publisher) Document(s platform.Snapshot) Discovery {
	return Discovery{
		Name:                s.Name,
		UniqueID:            s.UniqueID,
		ObjectID:            ObjectID(s),
		Icon:                s.Icon,
		Unit:                s.Unit,
		StateTopic:          p.StateTopic(s),
		AvailabilityTopic:   p.AvailabilityTopic(s),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		Device:              device(s.Device, p.cfg.Manufacturer),
	}
}

func device(d sensor.Device, manufacturer string) Device {
	model := d.Model
	if model == "" {
		model = string(d.DriveTrain)
	}
	return Device{
		Identifiers:  []string{d.VIN},
		Name:         d.Name,
		Manufacturer: manufacturer,
		Model:        model,
	}
}

// Announce publishes the retained discovery document of a snapshot.
func (p *Publisher) Announce(s platform.Snapshot) error {
	payload, err := json.Marshal(p.Document(s))
	if err != nil {
		return fmt.Errorf("marshal discovery %s: %w", s.UniqueID, err)
	}
	if err := p.pub.Publish(p.DiscoveryTopic(s), p.cfg.DiscoveryQoS, true, payload); err != nil {
		return err
	}
	p.mu.Lock()
	p.icons[s.UniqueID] = s.Icon
	p.mu.Unlock()
	return nil
}

// AnnounceAll publishes discovery documents for every snapshot and returns
// the joined errors.
func (p *Publisher) AnnounceAll(snaps []platform.Snapshot) error {
	var errs []error
	for _, s := range snaps {
		if err := p.Announce(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish sends state and availability of a snapshot. The discovery
// document is published again when the entity was never announced or its
// icon changed.
func (p *Publisher) Publish(s platform.Snapshot) error {
	p.mu.Lock()
	icon, announced := p.icons[s.UniqueID]
	p.mu.Unlock()
	if !announced || icon != s.Icon {
		if err := p.Announce(s); err != nil {
			return err
		}
	}
	availability := PayloadOffline
	if s.Available {
		availability = PayloadOnline
		if err := p.pub.Publish(p.StateTopic(s), p.cfg.StateQoS, true, []byte(sensor.FormatState(s.State))); err != nil {
			return err
		}
	}
	return p.pub.Publish(p.AvailabilityTopic(s), p.cfg.StateQoS, true, []byte(availability))
}

// Start subscribes to the bus and publishes every snapshot until ctx is
// canceled. The returned channel is closed once the publisher stopped.
func (p *Publisher) Start(ctx context.Context, bus *eventbus.TypedBus[platform.Snapshot]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-sub:
				if !ok {
					return
				}
				if err := p.Publish(s); err != nil {
					p.log.Errorf("hass publish %s: %v", s.UniqueID, err)
				}
			}
		}
	}()
	return done
}
