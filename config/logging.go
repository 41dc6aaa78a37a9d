package config

import (
	"fmt"
	"strings"

	"github.com/thoas/go-funk"
)

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	logFormats = []string{"", "json", "console"}
)

// LoggingConfig defines the application log level and output format. An
// empty format lets APP_ENV decide.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	c.Level = strings.ToLower(c.Level)
	c.Format = strings.ToLower(c.Format)
}

// Validate checks the level and format names.
func (c LoggingConfig) Validate() error {
	if !funk.ContainsString(logLevels, c.Level) {
		return fmt.Errorf("unknown log level %s", c.Level)
	}
	if !funk.ContainsString(logFormats, c.Format) {
		return fmt.Errorf("unknown log format %s", c.Format)
	}
	return nil
}
