package observability

import (
	"github.com/fulmenhq/gofulmen/logging"
)

// CLILogger is used by every command (SIMPLE profile). It stays nil when
// initialization fails; callers must tolerate that.
var CLILogger *logging.Logger

var debugEnabled bool

// InitCLILogger initializes the CLI logger with the SIMPLE profile. Verbose
// lowers the level to DEBUG so diagnostic output becomes visible.
func InitCLILogger(serviceName string, verbose bool) error {
	debugEnabled = false

	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		return err
	}
	CLILogger = logger

	if verbose {
		EnableDebug()
	}
	return nil
}

// EnableDebug lowers the CLI logger to DEBUG. Config and environment can turn
// verbose mode on after the logger was built from flags.
func EnableDebug() {
	debugEnabled = true
	if CLILogger != nil {
		CLILogger.SetLevel(logging.DEBUG)
	}
}

// DebugEnabled reports whether debug output was requested.
func DebugEnabled() bool {
	return debugEnabled
}
