package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotaguard/quotaguard/internal/appid"
	"github.com/quotaguard/quotaguard/internal/config"
	"github.com/quotaguard/quotaguard/internal/credentials"
	"github.com/quotaguard/quotaguard/internal/guard"
	"github.com/quotaguard/quotaguard/internal/observability"
	"github.com/quotaguard/quotaguard/internal/usage"
)

// EnvNoLimit disables the guard when set to "1".
const EnvNoLimit = "CLAUDE_NO_LIMIT"

var (
	cfgFile string
	verbose bool

	// configErr holds the failure to read an explicit --config file
	configErr error

	// App identity loaded from .fulmen/app.yaml, or the built-in fallback
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity, never nil.
func GetAppIdentity() *appidentity.Identity {
	if appIdentity == nil {
		return appid.Fallback()
	}
	return appIdentity
}

// rootCmd runs the guard when called without a subcommand.
var rootCmd = &cobra.Command{
	// NOTE: initConfig() overwrites these from app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: appid.DefaultDescription,
	Long: `Checks Claude quota utilization before an automated session starts.

Below the threshold it exits immediately. At or above it, it sleeps until the
five-hour window resets (plus a one minute buffer) and then exits. It always
exits 0, so a failed check never blocks the caller.

Set CLAUDE_NO_LIMIT=1 to skip the check entirely.`,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	RunE:               runGuard,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep telemetry from writing to stdout during config loading.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Load app identity early for help text (before cobra processes --help)
	if identity, err := appid.GetOrDefault(context.Background()); err == nil {
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().Float64("threshold", guard.DefaultThreshold, "five-hour utilization percent at which to wait")
	rootCmd.PersistentFlags().Float64("weekly-threshold", 0, "seven-day utilization percent at which to wait (0 disables)")
	rootCmd.PersistentFlags().String("secrets", credentials.DefaultSecretsPath(), "KEY=VALUE file consulted when credentials are not in the environment")
	rootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus textfile metrics to this path")

	// Guard-only flags
	rootCmd.Flags().Bool("no-sleep", false, "report over-threshold usage without sleeping")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("threshold", rootCmd.PersistentFlags().Lookup("threshold"))
	_ = viper.BindPFlag("weekly_threshold", rootCmd.PersistentFlags().Lookup("weekly-threshold"))
	_ = viper.BindPFlag("secrets_path", rootCmd.PersistentFlags().Lookup("secrets"))
	_ = viper.BindPFlag("metrics_file", rootCmd.PersistentFlags().Lookup("metrics-file"))
	_ = viper.BindPFlag("no_sleep", rootCmd.Flags().Lookup("no-sleep"))
}

func applyIdentity(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	appIdentity = identity
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// initConfig reads in config file and ENV variables if set. Nothing here
// stops the guard: an unreadable --config is remembered in configErr and
// only commands that opt in with requireConfig treat it as fatal.
func initConfig() {
	configErr = nil

	identity, identityErr := appid.GetOrDefault(context.Background())
	applyIdentity(identity)

	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v, identity.EnvPrefix)

	if err := observability.InitCLILogger(identity.BinaryName, verbose || v.GetBool("verbose")); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "logger unavailable: %v\n", err)
	}
	logger := observability.CLILogger
	debug := func(msg string, fields ...zap.Field) {
		if observability.DebugEnabled() && logger != nil {
			logger.Debug(msg, fields...)
		}
	}
	if identityErr != nil {
		debug("Using built-in app identity", zap.Error(identityErr))
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			configErr = err
			debug("Error reading config file, using defaults", zap.String("path", cfgFile), zap.Error(err))
			return
		}
		debug("Using config file", zap.String("path", v.ConfigFileUsed()))
		return
	}

	path := config.DefaultConfigPath(identity.ConfigName)
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		debug("No config file found, using defaults and environment variables")
		return
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		debug("Error reading config file, using defaults", zap.String("path", path), zap.Error(err))
		return
	}
	debug("Using config file", zap.String("path", v.ConfigFileUsed()))
}

// requireConfig is the PreRun of commands for which an unreadable --config
// is a usage error. The guard itself never uses it.
func requireConfig(_ *cobra.Command, _ []string) {
	if configErr != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", configErr)
	}
}

// runGuard never returns an error: every outcome exits 0.
func runGuard(cmd *cobra.Command, _ []string) error {
	logger := observability.CLILogger

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		if observability.DebugEnabled() && logger != nil {
			logger.Debug("Skipping rate limit check: invalid configuration", zap.Error(err))
		}
		return nil
	}
	if cfg.Verbose {
		observability.EnableDebug()
	}

	g := newGuard(cfg, os.Getenv(EnvNoLimit) == "1")
	outcome := g.Run(cmd.Context())

	if observability.DebugEnabled() && logger != nil {
		logger.Debug("Rate limit check finished", zap.String("decision", outcome.Decision.String()))
	}
	return nil
}

// newGuard wires the production collaborators from cfg.
func newGuard(cfg *config.Config, bypass bool) *guard.Guard {
	opts := guard.DefaultOptions()
	opts.Verbose = cfg.Verbose || observability.DebugEnabled()
	opts.NoSleep = cfg.NoSleep
	opts.Bypass = bypass
	opts.Threshold = cfg.Threshold
	opts.WeeklyThreshold = cfg.WeeklyThreshold
	opts.DefaultWait = cfg.Wait.Default
	opts.ResetBuffer = cfg.Wait.ResetBuffer

	g := &guard.Guard{
		Options:     opts,
		Credentials: credentials.NewResolver(cfg.SecretsPath),
		Recorder:    observability.NewRunMetrics(cfg.MetricsFile),
		Logger:      observability.CLILogger,
	}

	if bypass {
		return g
	}
	client, err := usage.NewClient(cfg.API.BaseURL, cfg.API.TLSProfile, cfg.API.Timeout)
	if err != nil {
		if opts.Verbose && g.Logger != nil {
			g.Logger.Debug("Usage client unavailable", zap.Error(err))
		}
		return g
	}
	g.Fetcher = client
	return g
}
