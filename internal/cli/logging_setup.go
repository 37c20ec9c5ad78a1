package cli

import (
	"github.com/spf13/cobra"

	"github.com/spicor/shardpack/internal/config"
	"github.com/spicor/shardpack/internal/logging"
)

// setupLogging configures logging based on config file, environment, and
// CLI flags, and attaches the logger plus a trace ID to the command
// context.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	loggingCfg := config.GetLoggingConfig()

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	result := logging.NewLoggerWithPath(loggingCfg.ToLoggingConfig())

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)

	rootLogger := result.Logger.With().Str("trace_id", traceID).Logger()
	ctx = rootLogger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger = logging.ComponentLogger(rootLogger, "cli")
	logger.Info().Str("command", cmd.Name()).Msg("command started")

	return result
}

// cleanupLogging closes the log file handle, if any.
func cleanupLogging(logResult *logging.LogPathResult) error {
	if logResult != nil {
		return logResult.Close()
	}
	return nil
}
