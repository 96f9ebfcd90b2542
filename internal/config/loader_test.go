package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v, "QUOTAGUARD_")
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 90.0, cfg.Threshold)
		assert.Equal(t, 0.0, cfg.WeeklyThreshold)
		assert.False(t, cfg.NoSleep)
		assert.Equal(t, "https://claude.ai", cfg.API.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.API.Timeout)
		assert.Equal(t, "safari", cfg.API.TLSProfile)
		assert.Equal(t, 600*time.Second, cfg.Wait.Default)
		assert.Equal(t, 60*time.Second, cfg.Wait.ResetBuffer)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("QUOTAGUARD_THRESHOLD", "75.5")
		t.Setenv("QUOTAGUARD_API_TIMEOUT", "3s")
		t.Setenv("QUOTAGUARD_WAIT_DEFAULT", "5m")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		assert.Equal(t, 75.5, cfg.Threshold)
		assert.Equal(t, 3*time.Second, cfg.API.Timeout)
		assert.Equal(t, 5*time.Minute, cfg.Wait.Default)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "threshold: 80\nweekly_threshold: 95\napi:\n  tls_profile: chrome\nwait:\n  reset_buffer: 2m\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, 80.0, cfg.Threshold)
		assert.Equal(t, 95.0, cfg.WeeklyThreshold)
		assert.Equal(t, "chrome", cfg.API.TLSProfile)
		assert.Equal(t, 2*time.Minute, cfg.Wait.ResetBuffer)
		assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		v := newViper(t)
		v.Set("threshold", 150)

		_, err := Load(v)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := Config{
		Threshold: 90,
		API:       APIConfig{BaseURL: "https://claude.ai", Timeout: time.Second},
		Wait:      WaitConfig{Default: time.Minute},
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.API.Timeout = 0
	require.Error(t, bad.Validate())

	bad = valid
	bad.Wait.ResetBuffer = -time.Second
	require.Error(t, bad.Validate())

	bad = valid
	bad.API.BaseURL = " "
	require.Error(t, bad.Validate())

	bad = valid
	bad.WeeklyThreshold = -1
	require.Error(t, bad.Validate())
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := DefaultConfigPath("")
	require.NotEmpty(t, path)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Contains(t, path, DefaultConfigName)
}
