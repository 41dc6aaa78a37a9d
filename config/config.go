package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/cdsensor/core/metrics"
	"github.com/kilianp07/cdsensor/infra/mqtt"
)

type Config struct {
	// Units selects the unit system: "imperial", anything else is metric.
	Units string `json:"units"`
	// VINs restricts the hosted vehicles. Empty keeps every vehicle.
	VINs                []string       `json:"vins"`
	PollIntervalSeconds int            `json:"poll_interval_seconds"`
	EventBuffer         int            `json:"event_buffer"`
	Source              SourceConfig   `json:"source"`
	MQTT                mqtt.Config    `json:"mqtt"`
	Hass                HassConfig     `json:"hass"`
	Metrics             metrics.Config `json:"metrics"`
	History             HistoryConfig  `json:"history"`
	HTTP                HTTPConfig     `json:"http"`
	Sentry              SentryConfig   `json:"sentry"`
	Logging             LoggingConfig  `json:"logging"`
}

// PollInterval returns the entity refresh interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// NeedsMQTT reports whether a component uses the broker.
func (c Config) NeedsMQTT() bool {
	return c.Hass.Enabled || c.Source.Type == SourceMQTT
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	if c.Units == "" {
		c.Units = "metric"
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 300
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	c.Source.SetDefaults()
	c.Hass.SetDefaults()
	c.History.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if c.NeedsMQTT() && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if err := c.Hass.Validate(); err != nil {
		return err
	}
	if c.History.Enabled {
		if err := c.History.Validate(); err != nil {
			return err
		}
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// K_MQTT__BROKER overrides mqtt.broker. The callback maps "__" to the
	// koanf delimiter so nested keys are unflattened.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
