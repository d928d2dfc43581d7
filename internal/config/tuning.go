package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ChannelConfig holds per-channel tuning. All fields are optional; a nil
// field keeps the channel's built-in default. The schema mirrors each
// channel's parameter list, so the same JSON works for startup configuration
// and runtime re-tuning.
type ChannelConfig struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	MinInterval *float64 `json:"min_interval,omitempty"` // seconds between accepted updates; 0 = unlimited
	Timeout     *float64 `json:"timeout,omitempty"`      // seconds without an update before stale; 0 = never

	// Params feeds additional model tunables (e.g. "stddev",
	// "min_satellites") straight into the channel's parameter list.
	Params map[string]float64 `json:"params,omitempty"`
}

// TuningConfig is the root configuration for the estimator process.
type TuningConfig struct {
	UpdatePeriod *string `json:"update_period,omitempty"`  // tick period, duration string like "20ms"
	EventLogPath *string `json:"event_log_path,omitempty"` // sqlite event log; empty disables recording

	Channels map[string]ChannelConfig `json:"channels,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.UpdatePeriod != nil && *c.UpdatePeriod != "" {
		d, err := time.ParseDuration(*c.UpdatePeriod)
		if err != nil {
			return fmt.Errorf("invalid update_period '%s': %w", *c.UpdatePeriod, err)
		}
		if d <= 0 {
			return fmt.Errorf("update_period must be positive, got %s", d)
		}
	}

	for name, cc := range c.Channels {
		if cc.MinInterval != nil && *cc.MinInterval < 0 {
			return fmt.Errorf("channel %q: min_interval must be non-negative, got %f", name, *cc.MinInterval)
		}
		if cc.Timeout != nil && *cc.Timeout < 0 {
			return fmt.Errorf("channel %q: timeout must be non-negative, got %f", name, *cc.Timeout)
		}
	}

	return nil
}

// GetUpdatePeriod parses and returns the UpdatePeriod as a time.Duration.
func (c *TuningConfig) GetUpdatePeriod() time.Duration {
	if c.UpdatePeriod == nil || *c.UpdatePeriod == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.UpdatePeriod)
	if err != nil {
		return 20 * time.Millisecond // default on parse error
	}
	return d
}

// GetEventLogPath returns the event log path, or empty when recording is
// disabled.
func (c *TuningConfig) GetEventLogPath() string {
	if c.EventLogPath == nil {
		return ""
	}
	return *c.EventLogPath
}

// Channel returns the configuration for the named channel; the zero value
// when the channel is not mentioned.
func (c *TuningConfig) Channel(name string) ChannelConfig {
	return c.Channels[name]
}

// GetEnabled returns the channel enable state or the default (enabled).
func (cc ChannelConfig) GetEnabled() bool {
	if cc.Enabled == nil {
		return true
	}
	return *cc.Enabled
}

// GetMinInterval returns the rate limit in seconds or the default (0).
func (cc ChannelConfig) GetMinInterval() float64 {
	if cc.MinInterval == nil {
		return 0
	}
	return *cc.MinInterval
}

// GetTimeout returns the staleness threshold in seconds or the default (0).
func (cc ChannelConfig) GetTimeout() float64 {
	if cc.Timeout == nil {
		return 0
	}
	return *cc.Timeout
}
