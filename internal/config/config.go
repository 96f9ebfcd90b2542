package config

import "time"

// Config represents the complete quotaguard configuration. Values come from
// defaults, an optional YAML config file, QUOTAGUARD_* environment variables
// and command-line flags, in increasing precedence.
type Config struct {
	Threshold       float64 `mapstructure:"threshold"`
	WeeklyThreshold float64 `mapstructure:"weekly_threshold"`
	NoSleep         bool    `mapstructure:"no_sleep"`
	Verbose         bool    `mapstructure:"verbose"`
	SecretsPath     string  `mapstructure:"secrets_path"`
	MetricsFile     string  `mapstructure:"metrics_file"`

	API  APIConfig  `mapstructure:"api"`
	Wait WaitConfig `mapstructure:"wait"`
}

// APIConfig contains usage endpoint settings.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	TLSProfile string        `mapstructure:"tls_profile"`
}

// WaitConfig contains sleep computation settings.
type WaitConfig struct {
	Default     time.Duration `mapstructure:"default"`
	ResetBuffer time.Duration `mapstructure:"reset_buffer"`
}
