package config

import "fmt"

// Snapshot source types.
const (
	SourceFile = "file"
	SourceMQTT = "mqtt"
)

// SourceConfig selects where vehicle snapshots come from.
type SourceConfig struct {
	Type string `json:"type"`
	// Path is the snapshot document read by the file source.
	Path string          `json:"path"`
	MQTT TelemetryConfig `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *SourceConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = SourceFile
	}
	if c.Type == SourceFile && c.Path == "" {
		c.Path = "vehicles.yaml"
	}
	c.MQTT.SetDefaults()
}

// Validate checks the source type and its settings.
func (c SourceConfig) Validate() error {
	switch c.Type {
	case SourceFile:
		if c.Path == "" {
			return fmt.Errorf("source: path is required")
		}
	case SourceMQTT:
		return c.MQTT.Validate()
	default:
		return fmt.Errorf("source: unknown type %q", c.Type)
	}
	return nil
}
