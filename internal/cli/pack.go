package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spicor/shardpack/internal/config"
	"github.com/spicor/shardpack/internal/corpus"
	"github.com/spicor/shardpack/internal/shard"
)

// PackParams holds the parameters for the pack command execution.
// Exported for testing.
type PackParams struct {
	OutDir string
	Splits []string
}

// newPackCmd creates the "pack" subcommand: shard packaging without the
// upload, writing finished shards to a local directory.
func newPackCmd() *cobra.Command {
	var params PackParams

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack the corpus into local TAR shards without uploading",
		Long: `Stream each configured corpus source and pack it into WebDataset TAR
shards under the output directory, named <split>_<NNNNN>.tar. Useful for
inspecting shard contents before an upload run.`,
		Example: `  shardpack pack --out ./shards
  shardpack pack --out ./shards --split train`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPack(cmd, params)
		},
	}

	cmd.Flags().StringVar(&params.OutDir, "out", "", "directory to write shards into (required)")
	cmd.Flags().StringSliceVar(&params.Splits, "split", nil, "only process the named splits (repeatable)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// runPack packs every selected split directly into the output directory.
func runPack(cmd *cobra.Command, params PackParams) error {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()

	sources, err := selectSources(cfg, params.Splits)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(params.OutDir, 0750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	streamer := corpus.NewStreamer(nil, speakerFromConfig(cfg))

	var summaries []SplitSummary
	for _, src := range sources {
		// Shards are written straight into the output directory and kept.
		summary, err := runSplit(ctx, streamer, src, cfg.Shard.Size, params.OutDir,
			func(_ context.Context, sh shard.Shard) error {
				logger.Info().
					Str("split", sh.Split).
					Str("path", sh.Path).
					Int("records", sh.Records).
					Msg("shard written")
				return nil
			})
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}

	return renderSummaries(cmd.OutOrStdout(), "", summaries)
}
