package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quotaguard/quotaguard/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("quotaguard-test", false))
	require.NotNil(t, observability.CLILogger)

	observability.CLILogger.Info("Test CLI log message", zap.String("test", "value"))
}

func TestInitCLILoggerVerbose(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("quotaguard-test", true))
	require.NotNil(t, observability.CLILogger)

	observability.CLILogger.Debug("Debug message", zap.String("mode", "verbose"))
}

func TestNewCLIStandalone(t *testing.T) {
	logger, err := logging.NewCLI("verbose-test")
	require.NoError(t, err)

	logger.SetLevel(logging.DEBUG)
	logger.Debug("Debug message", zap.String("mode", "verbose"))
}

func TestEnableDebugAfterInit(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("quotaguard-test", false))
	require.False(t, observability.DebugEnabled())

	observability.EnableDebug()
	require.True(t, observability.DebugEnabled())
	observability.CLILogger.Debug("Debug after init")

	require.NoError(t, observability.InitCLILogger("quotaguard-test", false))
	require.False(t, observability.DebugEnabled())
}
