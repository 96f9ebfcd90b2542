// Package config loads quotaguard configuration through viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/quotaguard/quotaguard/internal/credentials"
)

// DefaultConfigName names the XDG config directory when app identity is
// unavailable.
const DefaultConfigName = "quotaguard"

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("threshold", 90.0)
	v.SetDefault("weekly_threshold", 0.0)
	v.SetDefault("no_sleep", false)
	v.SetDefault("verbose", false)
	v.SetDefault("secrets_path", credentials.DefaultSecretsPath())
	v.SetDefault("metrics_file", "")

	v.SetDefault("api.base_url", "https://claude.ai")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.tls_profile", "safari")

	v.SetDefault("wait.default", "600s")
	v.SetDefault("wait.reset_buffer", "60s")
}

// BindEnv makes v read PREFIX_KEY environment variables, with dots and dashes
// in keys mapped to underscores.
func BindEnv(v *viper.Viper, prefix string) {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		prefix = strings.ToUpper(DefaultConfigName)
	}
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be in (0, 100], got %v", c.Threshold)
	}
	if c.WeeklyThreshold < 0 || c.WeeklyThreshold > 100 {
		return fmt.Errorf("weekly_threshold must be in [0, 100], got %v", c.WeeklyThreshold)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Wait.Default <= 0 {
		return fmt.Errorf("wait.default must be positive, got %s", c.Wait.Default)
	}
	if c.Wait.ResetBuffer < 0 {
		return fmt.Errorf("wait.reset_buffer must not be negative, got %s", c.Wait.ResetBuffer)
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	return nil
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath(configName string) string {
	if strings.TrimSpace(configName) == "" {
		configName = DefaultConfigName
	}
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}
