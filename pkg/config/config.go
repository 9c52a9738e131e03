package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Display  DisplayConfig  `mapstructure:"display"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the session server connection configuration
type ServerConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"` // For parsing string duration
}

// StreamConfig holds feed subscription and reconnect configuration
type StreamConfig struct {
	InitialBackoff      time.Duration `mapstructure:"-"`
	InitialBackoffStr   string        `mapstructure:"initial_backoff"`
	MaxBackoff          time.Duration `mapstructure:"-"`
	MaxBackoffStr       string        `mapstructure:"max_backoff"`
	HeartbeatTimeout    time.Duration `mapstructure:"-"`
	HeartbeatTimeoutStr string        `mapstructure:"heartbeat_timeout"`
}

// WorkflowConfig holds workflow event tracking configuration
type WorkflowConfig struct {
	// MaxGroups caps the number of retained event groups. Zero means unbounded.
	MaxGroups int `mapstructure:"max_groups"`
}

// DisplayConfig holds output rendering configuration
type DisplayConfig struct {
	Markdown   bool `mapstructure:"markdown"`
	ShowHidden bool `mapstructure:"show_hidden"`
	Width      int  `mapstructure:"width"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

// Global config instance
var cfg *Config

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Load loads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	// Set defaults first
	setDefaults()

	// Configure viper
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Set config search paths
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}
		tetherCfgHome := filepath.Join(xdgConfigHome, ".tether")

		viper.AddConfigPath("./.tether")   // Check project directory first
		viper.AddConfigPath(tetherCfgHome) // Then check XDG config location
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	// Enable environment variable support
	viper.AutomaticEnv()

	// Bind specific environment variables to Viper keys for explicit mapping
	bindEnvironmentVariables()

	// Read config file if it exists; all keys have defaults so a missing
	// file is not an error
	_ = viper.ReadInConfig()

	// Create config instance
	cfg = &Config{}

	// Unmarshal into struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Post-process durations (viper doesn't handle time.Duration directly)
	if err := processDurations(cfg); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}

	return cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.timeout", "30s")

	// Stream defaults
	viper.SetDefault("stream.initial_backoff", "1s")
	viper.SetDefault("stream.max_backoff", "30s")
	viper.SetDefault("stream.heartbeat_timeout", "0s")

	// Workflow defaults
	viper.SetDefault("workflow.max_groups", 0)

	// Display defaults
	viper.SetDefault("display.markdown", true)
	viper.SetDefault("display.show_hidden", false)
	viper.SetDefault("display.width", 100)

	// Logging defaults
	viper.SetDefault("logging.log_file", "./.tether/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables binds specific environment variables to Viper keys
func bindEnvironmentVariables() {
	viper.BindEnv("server.url", "TETHER_SERVER_URL")
	viper.BindEnv("server.timeout", "TETHER_SERVER_TIMEOUT")
	viper.BindEnv("stream.initial_backoff", "TETHER_STREAM_INITIAL_BACKOFF")
	viper.BindEnv("stream.max_backoff", "TETHER_STREAM_MAX_BACKOFF")
	viper.BindEnv("stream.heartbeat_timeout", "TETHER_STREAM_HEARTBEAT_TIMEOUT")
	viper.BindEnv("workflow.max_groups", "TETHER_WORKFLOW_MAX_GROUPS")
	viper.BindEnv("display.markdown", "TETHER_DISPLAY_MARKDOWN")
	viper.BindEnv("display.show_hidden", "TETHER_DISPLAY_SHOW_HIDDEN")
	viper.BindEnv("logging.log_file", "TETHER_LOG_FILE")
	viper.BindEnv("logging.level", "TETHER_LOG_LEVEL")
	viper.BindEnv("logging.preserve", "TETHER_LOG_PRESERVE")
}

// processDurations converts string durations to time.Duration
func processDurations(cfg *Config) error {
	var err error

	if cfg.Server.Timeout, err = parseDuration("server.timeout", cfg.Server.TimeoutStr, 30*time.Second); err != nil {
		return err
	}
	if cfg.Stream.InitialBackoff, err = parseDuration("stream.initial_backoff", cfg.Stream.InitialBackoffStr, time.Second); err != nil {
		return err
	}
	if cfg.Stream.MaxBackoff, err = parseDuration("stream.max_backoff", cfg.Stream.MaxBackoffStr, 30*time.Second); err != nil {
		return err
	}
	if cfg.Stream.HeartbeatTimeout, err = parseDuration("stream.heartbeat_timeout", cfg.Stream.HeartbeatTimeoutStr, 0); err != nil {
		return err
	}

	return nil
}

// parseDuration parses a string duration, falling back to def when unset
func parseDuration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// GetConfigFileUsed returns the path to the config file being used
func GetConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// SettingsPath anchors name next to the settings file in use, so a
// relative logging.log_file lands beside the config that named it. With
// no settings file loaded it falls back to the project-local .tether
// directory, matching the defaults.
func SettingsPath(name string) string {
	if used := viper.ConfigFileUsed(); used != "" {
		return filepath.Join(filepath.Dir(used), name)
	}
	return filepath.Join(".tether", name)
}
