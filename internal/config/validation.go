package config

import (
	"fmt"

	"glidetype/internal/logging"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Version != Version {
		return fmt.Errorf("unsupported config version %d, want %d", c.Version, Version)
	}

	if err := c.Tuning().Validate(); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}

	if c.Proximity.MaxPointToKeyLength <= 0 {
		return fmt.Errorf("max point-to-key length must be positive, got %v",
			c.Proximity.MaxPointToKeyLength)
	}

	if c.Layout.Watch && c.Layout.Path == "" {
		return fmt.Errorf("layout watching requires a layout path")
	}
	if c.Layout.DebounceMs < 0 {
		return fmt.Errorf("layout debounce must be non-negative, got %d", c.Layout.DebounceMs)
	}

	if c.Storage.BusyTimeoutMs < 0 {
		return fmt.Errorf("storage busy timeout must be non-negative, got %d", c.Storage.BusyTimeoutMs)
	}
	if c.Storage.MaxConnections < 0 {
		return fmt.Errorf("storage max connections must be non-negative, got %d", c.Storage.MaxConnections)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("file log output requires a file path")
	}

	return nil
}

// LoggerConfig maps the logging section onto the logging package's
// configuration. The config must have been validated.
func (c *Config) LoggerConfig() *logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	format, _ := logging.ParseFormat(c.Logging.Format)
	return &logging.Config{
		Level:     level,
		Format:    format,
		Output:    c.Logging.Output,
		FilePath:  c.Logging.FilePath,
		Component: logging.DefaultConfig().Component,
	}
}
