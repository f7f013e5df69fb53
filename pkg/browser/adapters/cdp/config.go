package cdp

import (
	"errors"
	"strings"
	"time"
)

// Config controls how the CDP adapter reaches a Chromium instance.
type Config struct {
	// ControlURL is the DevTools WebSocket URL of an already running browser.
	// When empty the adapter launches one.
	ControlURL     string
	Bin            string
	Headless       bool
	LaunchFlags    []string
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Headless:       false,
		ConnectTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	defaults.Headless = c.Headless
	if strings.TrimSpace(c.ControlURL) != "" {
		defaults.ControlURL = strings.TrimSpace(c.ControlURL)
	}
	if strings.TrimSpace(c.Bin) != "" {
		defaults.Bin = strings.TrimSpace(c.Bin)
	}
	if len(c.LaunchFlags) > 0 {
		defaults.LaunchFlags = append([]string(nil), c.LaunchFlags...)
	}
	if c.ConnectTimeout != 0 {
		defaults.ConnectTimeout = c.ConnectTimeout
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.ConnectTimeout < 0 {
		return errors.New("connect_timeout must be zero or positive")
	}
	if u := strings.TrimSpace(c.ControlURL); u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") && !strings.HasPrefix(u, "http://") {
		return errors.New("control_url must be a ws://, wss:// or http:// URL")
	}
	return nil
}
