// Package config handles configuration loading, validation, and management
// for glidetype.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"glidetype/internal/touchstate"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete glidetype configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" yaml:"version"`

	// Sampling configuration for trajectory thinning.
	Sampling SamplingConfig `toml:"sampling" yaml:"sampling"`

	// Proximity configuration for key reachability.
	Proximity ProximityConfig `toml:"proximity" yaml:"proximity"`

	// Alignment configuration for the gesture probability model.
	Alignment AlignmentConfig `toml:"alignment" yaml:"alignment"`

	// Layout configuration for the keyboard geometry source.
	Layout LayoutConfig `toml:"layout" yaml:"layout"`

	// Storage configuration for trace persistence.
	Storage StorageConfig `toml:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// SamplingConfig holds trajectory resampling configuration.
type SamplingConfig struct {
	// SampleSpacingScale is the minimum spacing between sampled gesture
	// points as a fraction of the most common key width.
	SampleSpacingScale float64 `toml:"sample_spacing_scale" yaml:"sample_spacing_scale"`

	// BeelineLookupRadiusScale sizes the path window used for beeline
	// speed, in key widths.
	BeelineLookupRadiusScale float64 `toml:"beeline_lookup_radius_scale" yaml:"beeline_lookup_radius_scale"`
}

// ProximityConfig holds key reachability configuration.
type ProximityConfig struct {
	// NearKeyThreshold is the normalized squared distance below which a
	// key counts as near a sampled point.
	NearKeyThreshold float64 `toml:"near_key_threshold" yaml:"near_key_threshold"`

	// ForwardWindowScale bounds the forward search-key union as a
	// fraction of the keyboard diagonal.
	ForwardWindowScale float64 `toml:"forward_window_scale" yaml:"forward_window_scale"`

	// MaxPointToKeyLength caps normalized point-to-key distances.
	MaxPointToKeyLength float64 `toml:"max_point_to_key_length" yaml:"max_point_to_key_length"`
}

// AlignmentConfig holds gesture alignment model configuration.
type AlignmentConfig struct {
	// BaseSigma is the spatial standard deviation in key widths.
	BaseSigma float64 `toml:"base_sigma" yaml:"base_sigma"`

	// SpeedSigmaBoost widens sigma on fast strokes.
	SpeedSigmaBoost float64 `toml:"speed_sigma_boost" yaml:"speed_sigma_boost"`

	// SkipMinCost and SkipMaxCost bound the cost of skipping a point.
	SkipMinCost float64 `toml:"skip_min_cost" yaml:"skip_min_cost"`
	SkipMaxCost float64 `toml:"skip_max_cost" yaml:"skip_max_cost"`

	// TerminalSkipPenalty is added to the skip cost at stroke endpoints.
	TerminalSkipPenalty float64 `toml:"terminal_skip_penalty" yaml:"terminal_skip_penalty"`

	// DemotionLogProbability is added to the skip score when demoting.
	DemotionLogProbability float64 `toml:"demotion_log_probability" yaml:"demotion_log_probability"`
}

// LayoutConfig holds keyboard layout source configuration.
type LayoutConfig struct {
	// Path is the layout file to load. Empty selects the built-in
	// QWERTY layout.
	Path string `toml:"path" yaml:"path"`

	// Watch enables hot reload of the layout file.
	Watch bool `toml:"watch" yaml:"watch"`

	// DebounceMs is the debounce interval for layout reloads in
	// milliseconds.
	DebounceMs int `toml:"debounce_ms" yaml:"debounce_ms"`
}

// StorageConfig holds trace persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite trace database. Empty disables
	// persistence.
	Path string `toml:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `toml:"max_connections" yaml:"max_connections"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", or "file".
	Output string `toml:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	tuning := touchstate.DefaultTuning()

	return &Config{
		Version: Version,
		Sampling: SamplingConfig{
			SampleSpacingScale:       tuning.SampleSpacingScale,
			BeelineLookupRadiusScale: tuning.BeelineLookupRadiusScale,
		},
		Proximity: ProximityConfig{
			NearKeyThreshold:    tuning.NearKeyThreshold,
			ForwardWindowScale:  tuning.ForwardWindowScale,
			MaxPointToKeyLength: 16.0,
		},
		Alignment: AlignmentConfig{
			BaseSigma:              tuning.AlignBaseSigma,
			SpeedSigmaBoost:        tuning.AlignSpeedSigmaBoost,
			SkipMinCost:            tuning.SkipMinCost,
			SkipMaxCost:            tuning.SkipMaxCost,
			TerminalSkipPenalty:    tuning.TerminalSkipPenalty,
			DemotionLogProbability: tuning.DemotionLogProbability,
		},
		Layout: LayoutConfig{
			Path:       "",
			Watch:      false,
			DebounceMs: 500,
		},
		Storage: StorageConfig{
			Path:           "",
			BusyTimeoutMs:  5000,
			MaxConnections: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads configuration from the specified path. If the path is empty or
// the file doesn't exist, returns default configuration. Supports TOML and
// YAML formats based on file extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with GLIDETYPE_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GLIDETYPE_LAYOUT_PATH"); v != "" {
		c.Layout.Path = v
	}
	if v := os.Getenv("GLIDETYPE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("GLIDETYPE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Tuning maps the sampling, proximity, and alignment sections onto the
// engine's tuning parameters.
func (c *Config) Tuning() touchstate.Tuning {
	return touchstate.Tuning{
		NearKeyThreshold:         c.Proximity.NearKeyThreshold,
		ForwardWindowScale:       c.Proximity.ForwardWindowScale,
		SampleSpacingScale:       c.Sampling.SampleSpacingScale,
		DemotionLogProbability:   c.Alignment.DemotionLogProbability,
		AlignBaseSigma:           c.Alignment.BaseSigma,
		AlignSpeedSigmaBoost:     c.Alignment.SpeedSigmaBoost,
		SkipMinCost:              c.Alignment.SkipMinCost,
		SkipMaxCost:              c.Alignment.SkipMaxCost,
		TerminalSkipPenalty:      c.Alignment.TerminalSkipPenalty,
		BeelineLookupRadiusScale: c.Sampling.BeelineLookupRadiusScale,
	}
}
