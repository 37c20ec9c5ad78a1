package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spicor/shardpack/internal/config"
	"github.com/spicor/shardpack/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the shardpack CLI.
// It wires up configuration loading, logging, and the upload/pack/verify
// subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:          "shardpack",
		Short:        "Pack speech corpora into WebDataset TAR shards",
		Long:         "shardpack streams a speech corpus from its source archives, packs it into WebDataset TAR shards, and pushes the shards to a Hugging Face dataset repository",
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional and usually carries HF_TOKEN.
			_ = godotenv.Load()

			configPath, _ := cmd.Flags().GetString("config")
			if configPath != "" {
				if err := config.LoadGlobalConfig(configPath); err != nil {
					return err
				}
			}

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().
		String("config", "", "path to config file (default ~/.shardpack/config.yaml)")
	cmd.AddCommand(newUploadCmd(), newPackCmd(), newVerifyCmd())

	return cmd
}

const rootCmdExample = `  # Push the configured corpus to a dataset repo
  shardpack upload spicor/gujarati-tts

  # Same, but create the repo as private
  shardpack upload spicor/gujarati-tts --private

  # Only the test split
  shardpack upload spicor/gujarati-tts --split test

  # Pack shards locally without uploading
  shardpack pack --out ./shards

  # Check the pairing invariant of an existing shard
  shardpack verify ./shards/train_00001.tar`
