//go:build !no_containers

package test

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cdsensor/app"
	"github.com/kilianp07/cdsensor/config"
	"github.com/kilianp07/cdsensor/infra/hass"
	"github.com/kilianp07/cdsensor/test/util"
)

const snapshotJSON = `{"vin":"WBY1Z21080V000000","name":"i3","drive_train":"BEV","available_services":["STATUS"],"status":{"mileage":12345,"charging_level_hv":81}}`

func startBroker(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	broker, cleanup, err := util.StartMosquitto(context.Background())
	if err != nil {
		t.Skipf("mosquitto not available: %v", err)
	}
	t.Cleanup(cleanup)
	return broker
}

func mqttConfig(broker, mode string) *config.Config {
	cfg := &config.Config{
		VINs:   []string{"WBY1Z21080V000000"},
		Source: config.SourceConfig{Type: config.SourceMQTT, MQTT: config.TelemetryConfig{Mode: mode, TimeoutSeconds: 3}},
		Hass:   config.HassConfig{Enabled: true},
	}
	cfg.MQTT.Broker = broker
	cfg.SetDefaults()
	return cfg
}

// TestPushedSnapshotReachesHomeAssistant publishes a retained snapshot and
// expects discovery, state and availability of the derived sensors.
func TestPushedSnapshotReachesHomeAssistant(t *testing.T) {
	broker := startBroker(t)
	cli, err := util.Connect(broker)
	require.NoError(t, err)
	defer cli.Disconnect(100)

	token := cli.Publish("cdsensor/snapshot/state/WBY1Z21080V000000", 1, true, []byte(snapshotJSON))
	require.True(t, token.WaitTimeout(2*time.Second))
	require.NoError(t, token.Error())
	collected, err := util.Collect(cli, "#")
	require.NoError(t, err)

	cfg := mqttConfig(broker, "push")
	require.NoError(t, cfg.Validate())
	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	assert.Eventually(t, func() bool {
		state, ok := collected.Last("cdsensor/WBY1Z21080V000000/charging_level_hv/state")
		return ok && state == "81"
	}, 5*time.Second, 50*time.Millisecond)
	avail, _ := collected.Last("cdsensor/WBY1Z21080V000000/charging_level_hv/availability")
	assert.Equal(t, hass.PayloadOnline, avail)

	raw, ok := collected.Last("homeassistant/sensor/cdsensor/wby1z21080v000000_charging_level_hv/config")
	require.True(t, ok)
	var doc hass.Discovery
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "WBY1Z21080V000000-charging_level_hv", doc.UniqueID)
	assert.Equal(t, "%", doc.Unit)
	assert.True(t, strings.HasPrefix(doc.Icon, "mdi:battery"), doc.Icon)
}

// TestPolledSnapshotIsLoaded answers the snapshot request like a vehicle
// bridge would.
func TestPolledSnapshotIsLoaded(t *testing.T) {
	broker := startBroker(t)
	bridge, err := util.Connect(broker)
	require.NoError(t, err)
	defer bridge.Disconnect(100)
	token := bridge.Subscribe("cdsensor/snapshot/request", 1, func(c paho.Client, _ paho.Message) {
		c.Publish("cdsensor/snapshot/response/WBY1Z21080V000000", 1, false, []byte(snapshotJSON))
	})
	require.True(t, token.WaitTimeout(2*time.Second))
	require.NoError(t, token.Error())

	cfg := mqttConfig(broker, "pull")
	cfg.Hass.Enabled = false
	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := svc.Setup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, svc.Platform().Refresh(ctx))
	snap, ok := svc.Platform().Snapshot("WBY1Z21080V000000-mileage")
	require.True(t, ok)
	assert.True(t, snap.Available)
	assert.Equal(t, 12345.0, snap.State)
}
