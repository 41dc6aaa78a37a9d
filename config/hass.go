package config

import (
	"fmt"
	"strings"
)

// HassConfig defines the Home Assistant MQTT discovery publisher.
type HassConfig struct {
	Enabled bool `json:"enabled"`
	// DiscoveryPrefix is the topic prefix Home Assistant listens on.
	DiscoveryPrefix string `json:"discovery_prefix"`
	// NodeID groups the discovery documents of this bridge.
	NodeID string `json:"node_id"`
	// BaseTopic prefixes state and availability topics.
	BaseTopic    string `json:"base_topic"`
	Manufacturer string `json:"manufacturer"`
	DiscoveryQoS byte   `json:"discovery_qos"`
	StateQoS     byte   `json:"state_qos"`
}

// SetDefaults applies sane defaults.
func (c *HassConfig) SetDefaults() {
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = "homeassistant"
	}
	if c.NodeID == "" {
		c.NodeID = "cdsensor"
	}
	if c.BaseTopic == "" {
		c.BaseTopic = "cdsensor"
	}
	if c.Manufacturer == "" {
		c.Manufacturer = "BMW"
	}
}

// Validate checks topic segments and QoS levels.
func (c HassConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	for name, v := range map[string]string{"discovery_prefix": c.DiscoveryPrefix, "node_id": c.NodeID, "base_topic": c.BaseTopic} {
		if v == "" || strings.ContainsAny(v, "+#") {
			return fmt.Errorf("hass: invalid %s %q", name, v)
		}
	}
	if strings.Contains(c.NodeID, "/") {
		return fmt.Errorf("hass: node_id must be a single topic level")
	}
	if c.DiscoveryQoS > 2 || c.StateQoS > 2 {
		return fmt.Errorf("hass: qos must be between 0 and 2")
	}
	return nil
}
