package hass

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cdsensor/config"
	"github.com/kilianp07/cdsensor/core/entity"
	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/core/sensor"
	"github.com/kilianp07/cdsensor/core/vehicle"
	"github.com/kilianp07/cdsensor/infra/logger"
	"github.com/kilianp07/cdsensor/infra/mqtt"
	"github.com/kilianp07/cdsensor/internal/eventbus"
)

func testConfig() config.HassConfig {
	cfg := config.HassConfig{Enabled: true, StateQoS: 1, DiscoveryQoS: 1}
	cfg.SetDefaults()
	return cfg
}

func snapshot() platform.Snapshot {
	return platform.Snapshot{
		UniqueID:   "WBY1Z21080V000000-charging_level_hv",
		Name:       "i3 charging_level_hv",
		Device:     sensor.Device{VIN: "WBY1Z21080V000000", Name: "i3", DriveTrain: vehicle.DriveTrainBEVRangeExt},
		Descriptor: entity.Descriptor{Service: vehicle.ServiceStatus, Field: "charging_level_hv"},
		State:      81.0,
		Unit:       "%",
		Icon:       "mdi:battery-80",
		Available:  true,
	}
}

func TestTopics(t *testing.T) {
	p := New(mqtt.NewMockPublisher(), testConfig(), logger.NopLogger{})
	s := snapshot()
	assert.Equal(t, "homeassistant/sensor/cdsensor/wby1z21080v000000_charging_level_hv/config", p.DiscoveryTopic(s))
	assert.Equal(t, "cdsensor/WBY1Z21080V000000/charging_level_hv/state", p.StateTopic(s))
	assert.Equal(t, "cdsensor/WBY1Z21080V000000/charging_level_hv/availability", p.AvailabilityTopic(s))

	trip := s
	trip.Descriptor = entity.Descriptor{Service: vehicle.ServiceAllTrips, Field: "average_combined_consumption", SubField: "user_average"}
	assert.Equal(t, "cdsensor/WBY1Z21080V000000/all_trips_average_combined_consumption_user_average/state", p.StateTopic(trip))
}

func TestDocument(t *testing.T) {
	p := New(mqtt.NewMockPublisher(), testConfig(), logger.NopLogger{})
	doc := p.Document(snapshot())
	assert.Equal(t, "WBY1Z21080V000000-charging_level_hv", doc.UniqueID)
	assert.Equal(t, "%", doc.Unit)
	assert.Equal(t, []string{"WBY1Z21080V000000"}, doc.Device.Identifiers)
	assert.Equal(t, "BEV_REX", doc.Device.Model)
	assert.Equal(t, "BMW", doc.Device.Manufacturer)

	s := snapshot()
	s.Unit = ""
	s.Device.Model = "i3 94"
	raw, err := json.Marshal(p.Document(s))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	_, hasUnit := m["unit_of_measurement"]
	assert.False(t, hasUnit)
	assert.Equal(t, "i3 94", m["device"].(map[string]any)["model"])
}

func TestPublishStateAndAvailability(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	p := New(pub, testConfig(), logger.NopLogger{})
	s := snapshot()
	require.NoError(t, p.Publish(s))

	cfgMsg, ok := pub.Last(p.DiscoveryTopic(s))
	require.True(t, ok, "first publish announces")
	assert.True(t, cfgMsg.Retained)
	state, ok := pub.Last(p.StateTopic(s))
	require.True(t, ok)
	assert.Equal(t, "81", string(state.Payload))
	assert.Equal(t, byte(1), state.QoS)
	avail, _ := pub.Last(p.AvailabilityTopic(s))
	assert.Equal(t, PayloadOnline, string(avail.Payload))

	s.Available = false
	s.State = nil
	require.NoError(t, p.Publish(s))
	avail, _ = pub.Last(p.AvailabilityTopic(s))
	assert.Equal(t, PayloadOffline, string(avail.Payload))
	assert.Len(t, pub.Published(p.StateTopic(s)), 1, "no state while unavailable")
	assert.Len(t, pub.Published(p.DiscoveryTopic(s)), 1)
}

func TestIconChangeReannounces(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	p := New(pub, testConfig(), logger.NopLogger{})
	s := snapshot()
	require.NoError(t, p.AnnounceAll([]platform.Snapshot{s}))
	require.NoError(t, p.Publish(s))
	assert.Len(t, pub.Published(p.DiscoveryTopic(s)), 1)

	s.Icon = "mdi:battery-charging-90"
	require.NoError(t, p.Publish(s))
	msgs := pub.Published(p.DiscoveryTopic(s))
	require.Len(t, msgs, 2)
	var doc Discovery
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &doc))
	assert.Equal(t, "mdi:battery-charging-90", doc.Icon)
}

func TestPublishError(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	p := New(pub, testConfig(), logger.NopLogger{})
	s := snapshot()
	pub.FailTopics[p.DiscoveryTopic(s)] = true
	assert.Error(t, p.Publish(s))
	assert.Error(t, p.AnnounceAll([]platform.Snapshot{s}))
	assert.Empty(t, pub.Published(p.StateTopic(s)))
}

func TestStartConsumesBus(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	p := New(pub, testConfig(), logger.NopLogger{})
	bus := eventbus.NewTyped[platform.Snapshot]()
	ctx, cancel := context.WithCancel(context.Background())
	done := p.Start(ctx, bus)

	s := snapshot()
	bus.Publish(s)
	assert.Eventually(t, func() bool {
		_, ok := pub.Last(p.AvailabilityTopic(s))
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}
