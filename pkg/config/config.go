// Package config provides configuration loading and validation for the
// revchurn CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidSourceType = errors.New("source type must be svn or git")
	ErrMissingRepository = errors.New("repository location is required")
	ErrInvalidWorkers    = errors.New("worker count must be positive")
	ErrInvalidOnError    = errors.New("on_error must be abort or skip")
	ErrInvalidTimeout    = errors.New("source timeout must not be negative")
	ErrInvalidLogLevel   = errors.New("log level must be debug, info, warn, or error")
	ErrInvalidLogFormat  = errors.New("log format must be text or json")
)

// Default configuration values.
const (
	defaultWorkers       = 4
	defaultSourceTimeout = 2 * time.Minute
)

// Config holds all configuration for the revchurn CLI.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SourceConfig selects and tunes the revision source.
type SourceConfig struct {
	Type       string        `mapstructure:"type"`
	Repository string        `mapstructure:"repository"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PipelineConfig tunes diff retrieval and failure handling.
type PipelineConfig struct {
	Workers int    `mapstructure:"workers"`
	OnError string `mapstructure:"on_error"`
}

// CacheConfig controls the on-disk diff cache.
type CacheConfig struct {
	Directory string `mapstructure:"directory"`
	Enabled   bool   `mapstructure:"enabled"`
}

// OutputConfig holds report rendering defaults.
type OutputConfig struct {
	Formats     []string `mapstructure:"formats"`
	PerRevision bool     `mapstructure:"per_revision"`
	NoColor     bool     `mapstructure:"no_color"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings. Everything is off
// unless an endpoint or the Prometheus listener is configured.
type TelemetryConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
	Environment    string `mapstructure:"environment"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".revchurn")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix("REVCHURN")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Source defaults.
	viperCfg.SetDefault("source.type", "svn")
	viperCfg.SetDefault("source.timeout", defaultSourceTimeout.String())

	// Pipeline defaults.
	viperCfg.SetDefault("pipeline.workers", defaultWorkers)
	viperCfg.SetDefault("pipeline.on_error", "abort")

	// Cache defaults.
	viperCfg.SetDefault("cache.enabled", false)
	viperCfg.SetDefault("cache.directory", "")

	// Output defaults.
	viperCfg.SetDefault("output.formats", []string{"console"})
	viperCfg.SetDefault("output.per_revision", false)
	viperCfg.SetDefault("output.no_color", false)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", "dev")
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case "svn", "git":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, c.Source.Type)
	}

	if c.Source.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Source.Timeout)
	}

	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Pipeline.Workers)
	}

	switch c.Pipeline.OnError {
	case "abort", "skip":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOnError, c.Pipeline.OnError)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}
