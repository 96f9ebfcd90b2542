package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotaguard/quotaguard/internal/config"
	"github.com/quotaguard/quotaguard/internal/credentials"
	apperrors "github.com/quotaguard/quotaguard/internal/errors"
	"github.com/quotaguard/quotaguard/internal/guard"
	"github.com/quotaguard/quotaguard/internal/observability"
	"github.com/quotaguard/quotaguard/internal/output"
	"github.com/quotaguard/quotaguard/internal/usage"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current session and weekly usage",
	Long: `Fetch usage once and print the five-hour and seven-day windows.

Never sleeps. A failed fetch is logged and the command still exits 0.`,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	PreRun:             requireConfig,
	RunE:               runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", string(output.FormatTable), "output format: table, json, yaml")
}

// usageFetcher is swapped in tests.
var usageFetcher = func(cfg *config.Config) (guard.Fetcher, error) {
	return usage.NewClient(cfg.API.BaseURL, cfg.API.TLSProfile, cfg.API.Timeout)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return apperrors.WrapConfigInvalid(ctx, err, "invalid configuration")
	}

	logger := observability.CLILogger
	warn := func(msg string, fields ...zap.Field) {
		if logger != nil {
			logger.Warn(msg, fields...)
		}
	}

	creds, err := credentials.NewResolver(cfg.SecretsPath).Resolve()
	if err != nil {
		warn("Cannot check usage", zap.Error(err))
		return nil
	}

	fetcher, err := usageFetcher(cfg)
	if err != nil {
		warn("Usage client unavailable", zap.Error(err))
		return nil
	}

	checkID := uuid.New().String()
	resp, err := fetcher.Fetch(apperrors.WithCorrelationID(ctx, checkID), creds)
	if err != nil {
		warn("Usage check failed",
			zap.String("check_id", checkID),
			zap.String("error_code", apperrors.Code(err)),
			zap.Error(err))
		return nil
	}

	now := time.Now().UTC()
	metrics := observability.NewRunMetrics(cfg.MetricsFile)
	report := &output.StatusReport{CheckID: checkID, FetchedAt: now}

	five := resp.FiveHourSnapshot(now, checkID)
	metrics.ObserveWindow(five.Window, five.Utilization, five.ResetsAt)
	report.Windows = append(report.Windows, output.NewWindowStatus(five, cfg.Threshold, now))

	if weekly, ok := resp.SevenDaySnapshot(now, checkID); ok {
		metrics.ObserveWindow(weekly.Window, weekly.Utilization, weekly.ResetsAt)
		report.Windows = append(report.Windows, output.NewWindowStatus(weekly, cfg.WeeklyThreshold, now))
	}

	if err := metrics.Flush(); err != nil {
		warn("Failed to write metrics", zap.Error(err))
	}

	rendered, err := output.Render(format, report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
