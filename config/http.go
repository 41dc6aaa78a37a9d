package config

// HTTPConfig defines the sensor API server.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	// Token protects the history endpoint when set.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
