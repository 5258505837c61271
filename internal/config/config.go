package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/777genius/playto/internal/platform"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "PLAYTO_CONFIG"

// Config represents the playto configuration
type Config struct {
	Output        OutputConfig        `json:"output"`
	Notifications NotificationsConfig `json:"notifications"`
	Logging       LoggingConfig       `json:"logging"`
}

// OutputConfig represents audio output settings
type OutputConfig struct {
	Backends           []string `json:"backends"`           // malgo backend priority, e.g. ["pulseaudio", "alsa"] (empty = miniaudio default)
	StrictDevice       bool     `json:"strictDevice"`       // Fail when the named device is not found instead of using the default output
	PeriodSizeInFrames uint32   `json:"periodSizeInFrames"` // Larger periods prevent crackling, default 4096
	Periods            uint32   `json:"periods"`            // default 4
}

// NotificationsConfig represents notification settings
type NotificationsConfig struct {
	Desktop DesktopConfig `json:"desktop"`
}

// DesktopConfig represents the "finished playing" desktop notification
type DesktopConfig struct {
	Enabled bool   `json:"enabled"`
	Method  string `json:"method"`  // "auto", "beeep", "osc9" (default: "auto")
	AppIcon string `json:"appIcon"` // Path to app icon
}

// LoggingConfig represents log settings
type LoggingConfig struct {
	Level string `json:"level"` // debug, info, warn, error, disabled (default: error)
	File  string `json:"file"`  // empty = stderr
}

// validBackends lists the malgo backend names accepted in output.backends
var validBackends = map[string]bool{
	"wasapi":     true,
	"dsound":     true,
	"winmm":      true,
	"coreaudio":  true,
	"sndio":      true,
	"audio4":     true,
	"oss":        true,
	"pulseaudio": true,
	"alsa":       true,
	"jack":       true,
	"aaudio":     true,
	"opensl":     true,
	"webaudio":   true,
	"null":       true,
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			PeriodSizeInFrames: 4096,
			Periods:            4,
		},
		Notifications: NotificationsConfig{
			Desktop: DesktopConfig{
				Enabled: false,
				Method:  "auto",
			},
		},
		Logging: LoggingConfig{
			Level: "error",
		},
	}
}

// DefaultPath returns $PLAYTO_CONFIG or the per-user config file
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(platform.ConfigDir(), "config.json")
}

// Load loads configuration from a file
// If the file doesn't exist, returns default config
func Load(path string) (*Config, error) {
	if !platform.FileExists(path) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in paths
	config.Notifications.Desktop.AppIcon = platform.ExpandEnv(config.Notifications.Desktop.AppIcon)
	config.Logging.File = platform.ExpandEnv(config.Logging.File)

	config.ApplyDefaults()

	return config, nil
}

// ApplyDefaults fills in missing fields with default values
func (c *Config) ApplyDefaults() {
	if c.Output.PeriodSizeInFrames == 0 {
		c.Output.PeriodSizeInFrames = 4096
	}
	if c.Output.Periods == 0 {
		c.Output.Periods = 4
	}
	if c.Notifications.Desktop.Method == "" {
		c.Notifications.Desktop.Method = "auto"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "error"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for _, name := range c.Output.Backends {
		if !validBackends[strings.ToLower(name)] {
			return fmt.Errorf("invalid output backend: %s", name)
		}
	}

	validMethods := map[string]bool{
		"":      true, // empty means auto
		"auto":  true,
		"beeep": true,
		"osc9":  true,
	}
	if !validMethods[c.Notifications.Desktop.Method] {
		return fmt.Errorf("invalid notification method: %s (must be one of: auto, beeep, osc9)", c.Notifications.Desktop.Method)
	}

	validLevels := map[string]bool{
		"":         true,
		"debug":    true,
		"info":     true,
		"warn":     true,
		"error":    true,
		"disabled": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error, disabled)", c.Logging.Level)
	}

	if c.Output.Periods > 64 {
		return fmt.Errorf("output periods must be between 1 and 64 (got %d)", c.Output.Periods)
	}

	return nil
}

// IsDesktopEnabled returns true if the finished-playing notification is enabled
func (c *Config) IsDesktopEnabled() bool {
	return c.Notifications.Desktop.Enabled
}
