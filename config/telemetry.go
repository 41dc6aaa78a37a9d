package config

import (
	"fmt"
	"strings"
)

// TelemetryConfig holds configuration for the MQTT snapshot source.
type TelemetryConfig struct {
	// Mode is "push", "pull" or "hybrid".
	Mode           string `json:"mode"`
	RequestTopic   string `json:"request_topic"`
	ResponsePrefix string `json:"response_topic_prefix"`
	StatePrefix    string `json:"state_topic_prefix"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	QoS            byte   `json:"qos"`
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}

// SetDefaults applies sane defaults.
func (c *TelemetryConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "push"
	}
	c.Mode = strings.ToLower(c.Mode)
	if c.StatePrefix == "" {
		c.StatePrefix = "cdsensor/snapshot/state"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = "cdsensor/snapshot/request"
	}
	if c.ResponsePrefix == "" {
		c.ResponsePrefix = "cdsensor/snapshot/response"
	}
}

// Pushes reports whether snapshots are received on the state topics.
func (c TelemetryConfig) Pushes() bool { return c.Mode == "push" || c.Mode == "hybrid" }

// Pulls reports whether snapshots are requested on every poll.
func (c TelemetryConfig) Pulls() bool { return c.Mode == "pull" || c.Mode == "hybrid" }

// Validate checks the mode and topics.
func (c TelemetryConfig) Validate() error {
	switch c.Mode {
	case "push", "pull", "hybrid":
	default:
		return fmt.Errorf("telemetry: unknown mode %q", c.Mode)
	}
	if c.Pulls() && (c.RequestTopic == "" || c.ResponsePrefix == "") {
		return fmt.Errorf("telemetry: pull mode requires request_topic and response_topic_prefix")
	}
	if c.Pushes() && c.StatePrefix == "" {
		return fmt.Errorf("telemetry: push mode requires state_topic_prefix")
	}
	if c.QoS > 2 {
		return fmt.Errorf("telemetry: qos must be between 0 and 2")
	}
	return nil
}
