// Package config loads the mover's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/playspace.defaults.json"

// Default values used when a field is omitted.
const (
	// DefaultButtonMask has bits 1 and 7 set: B/Y and A/X on Oculus Touch,
	// the menu button on Vive wands.
	DefaultButtonMask uint64 = 130
	// DefaultMaxFrameDelta bounds each axis of a single frame's grab motion.
	DefaultMaxFrameDelta = 0.1
	// DefaultVirtualDeviceScale is applied to corrections sent for virtual
	// devices, which the injection service applies at double strength.
	DefaultVirtualDeviceScale = 0.5
	DefaultMaxFrameSleep      = 11 * time.Millisecond
	DefaultIdlePollInterval   = time.Millisecond
	DefaultRetryInterval      = time.Second
	DefaultRegistryPolicy     = RegistryPolicyCount
	DefaultHistorySize        = 2048
)

// Registry invalidation policies.
const (
	RegistryPolicyCount  = "count"
	RegistryPolicyAlways = "always"
)

// Config is the root configuration. Fields are pointers so a partial file
// leaves the rest at their defaults; use the Get* accessors to read them.
type Config struct {
	LeftButtonMask     *uint64  `json:"left_button_mask,omitempty"`
	RightButtonMask    *uint64  `json:"right_button_mask,omitempty"`
	MaxFrameDelta      *float64 `json:"max_frame_delta,omitempty"`
	VirtualDeviceScale *float64 `json:"virtual_device_scale,omitempty"`

	// Loop pacing
	MaxFrameSleep    *string `json:"max_frame_sleep,omitempty"`    // duration string like "11ms"
	IdlePollInterval *string `json:"idle_poll_interval,omitempty"` // duration string like "1ms"
	RetryInterval    *string `json:"retry_interval,omitempty"`     // duration string like "1s"

	RegistryPolicy *string `json:"registry_policy,omitempty"`

	// Outer surfaces
	Listen      *string `json:"listen,omitempty"`
	JournalPath *string `json:"journal_path,omitempty"`
	SentryDSN   *string `json:"sentry_dsn,omitempty"`
	HistorySize *int    `json:"history_size,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a Config with all fields set to nil.
func EmptyConfig() *Config {
	return &Config{}
}

// DefaultConfig returns a Config with every field populated with its default.
func DefaultConfig() *Config {
	return &Config{
		LeftButtonMask:     ptrUint64(DefaultButtonMask),
		RightButtonMask:    ptrUint64(DefaultButtonMask),
		MaxFrameDelta:      ptrFloat64(DefaultMaxFrameDelta),
		VirtualDeviceScale: ptrFloat64(DefaultVirtualDeviceScale),
		MaxFrameSleep:      ptrString(DefaultMaxFrameSleep.String()),
		IdlePollInterval:   ptrString(DefaultIdlePollInterval.String()),
		RetryInterval:      ptrString(DefaultRetryInterval.String()),
		RegistryPolicy:     ptrString(DefaultRegistryPolicy),
		Listen:             ptrString(""),
		JournalPath:        ptrString(""),
		SentryDSN:          ptrString(""),
		HistorySize:        ptrInt(DefaultHistorySize),
	}
}

// Load reads a Config from a JSON file and validates it. Fields omitted from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 64 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.MaxFrameDelta != nil && *c.MaxFrameDelta <= 0 {
		return fmt.Errorf("max_frame_delta must be positive, got %f", *c.MaxFrameDelta)
	}
	if c.VirtualDeviceScale != nil && (*c.VirtualDeviceScale < 0 || *c.VirtualDeviceScale > 1) {
		return fmt.Errorf("virtual_device_scale must be between 0 and 1, got %f", *c.VirtualDeviceScale)
	}
	for name, v := range map[string]*string{
		"max_frame_sleep":    c.MaxFrameSleep,
		"idle_poll_interval": c.IdlePollInterval,
		"retry_interval":     c.RetryInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.RegistryPolicy != nil {
		switch *c.RegistryPolicy {
		case "", RegistryPolicyCount, RegistryPolicyAlways:
		default:
			return fmt.Errorf("registry_policy must be %q or %q, got %q", RegistryPolicyCount, RegistryPolicyAlways, *c.RegistryPolicy)
		}
	}
	if c.HistorySize != nil && *c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", *c.HistorySize)
	}
	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetLeftButtonMask returns the left_button_mask value or the default.
func (c *Config) GetLeftButtonMask() uint64 {
	if c.LeftButtonMask == nil {
		return DefaultButtonMask
	}
	return *c.LeftButtonMask
}

// GetRightButtonMask returns the right_button_mask value or the default.
func (c *Config) GetRightButtonMask() uint64 {
	if c.RightButtonMask == nil {
		return DefaultButtonMask
	}
	return *c.RightButtonMask
}

// GetMaxFrameDelta returns the max_frame_delta value or the default.
func (c *Config) GetMaxFrameDelta() float64 {
	if c.MaxFrameDelta == nil {
		return DefaultMaxFrameDelta
	}
	return *c.MaxFrameDelta
}

// GetVirtualDeviceScale returns the virtual_device_scale value or the default.
func (c *Config) GetVirtualDeviceScale() float64 {
	if c.VirtualDeviceScale == nil {
		return DefaultVirtualDeviceScale
	}
	return *c.VirtualDeviceScale
}

// GetMaxFrameSleep parses and returns MaxFrameSleep.
func (c *Config) GetMaxFrameSleep() time.Duration {
	return parseDurationOr(c.MaxFrameSleep, DefaultMaxFrameSleep)
}

// GetIdlePollInterval parses and returns IdlePollInterval.
func (c *Config) GetIdlePollInterval() time.Duration {
	return parseDurationOr(c.IdlePollInterval, DefaultIdlePollInterval)
}

// GetRetryInterval parses and returns RetryInterval.
func (c *Config) GetRetryInterval() time.Duration {
	return parseDurationOr(c.RetryInterval, DefaultRetryInterval)
}

// GetRegistryPolicy returns the registry_policy value or the default.
func (c *Config) GetRegistryPolicy() string {
	if c.RegistryPolicy == nil || *c.RegistryPolicy == "" {
		return DefaultRegistryPolicy
	}
	return *c.RegistryPolicy
}

// GetListen returns the status server address; empty disables the server.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ""
	}
	return *c.Listen
}

// GetJournalPath returns the grab journal path; empty disables the journal.
func (c *Config) GetJournalPath() string {
	if c.JournalPath == nil {
		return ""
	}
	return *c.JournalPath
}

// GetSentryDSN returns the crash reporting DSN; empty disables reporting.
func (c *Config) GetSentryDSN() string {
	if c.SentryDSN == nil {
		return ""
	}
	return *c.SentryDSN
}

// GetHistorySize returns the history_size value or the default.
func (c *Config) GetHistorySize() int {
	if c.HistorySize == nil {
		return DefaultHistorySize
	}
	return *c.HistorySize
}
