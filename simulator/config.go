package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker         string
	Count          int
	Interval       time.Duration
	StatePrefix    string
	RequestTopic   string
	ResponsePrefix string
	Seed           int64
	Verbose        bool
}

// Validate checks the simulator parameters.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.StatePrefix == "" && c.ResponsePrefix == "" {
		return fmt.Errorf("state or response prefix is required")
	}
	return nil
}
