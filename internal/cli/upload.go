package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spicor/shardpack/internal/config"
	"github.com/spicor/shardpack/internal/corpus"
	"github.com/spicor/shardpack/internal/hub"
	"github.com/spicor/shardpack/internal/shard"
)

// UploadParams holds the parameters for the upload command execution.
// Exported for testing.
type UploadParams struct {
	RepoID  string
	Private bool
	Splits  []string
}

// newUploadCmd creates the "upload" subcommand: the full pipeline from
// source archives to shards on the Hub.
func newUploadCmd() *cobra.Command {
	var params UploadParams

	cmd := &cobra.Command{
		Use:   "upload <repo_id>",
		Short: "Pack the corpus and push its shards to a dataset repo",
		Long: `Stream each configured corpus source, pack it into WebDataset TAR
shards, and upload every shard to the destination dataset repository.
Shards land under data/<split>/ and local staging files are removed as
soon as their upload succeeds.

The Hub access token is read from the HF_TOKEN environment variable
(a .env file in the working directory is honored).`,
		Example: `  # Public dataset repo
  shardpack upload spicor/gujarati-tts

  # Private repo, test split only
  shardpack upload spicor/gujarati-tts --private --split test`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.RepoID = args[0]
			return runUpload(cmd, params)
		},
	}

	cmd.Flags().BoolVar(&params.Private, "private", false, "create the dataset repo as private")
	cmd.Flags().StringSliceVar(&params.Splits, "split", nil, "only process the named splits (repeatable)")

	return cmd
}

// runUpload executes the upload pipeline sequentially over the configured
// sources. The first failing record, shard, or upload aborts the run.
func runUpload(cmd *cobra.Command, params UploadParams) error {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()

	sources, err := selectSources(cfg, params.Splits)
	if err != nil {
		return err
	}

	client, err := hub.NewClient(cfg.Hub, os.Getenv(hub.EnvToken))
	if err != nil {
		return err
	}

	if err := client.EnsureRepo(ctx, params.RepoID, params.Private); err != nil {
		return err
	}

	streamer := corpus.NewStreamer(nil, speakerFromConfig(cfg))

	var summaries []SplitSummary
	for _, src := range sources {
		summary, err := uploadSplit(cmd, streamer, client, src, cfg, params.RepoID)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}

	return renderSummaries(cmd.OutOrStdout(), params.RepoID, summaries)
}

// uploadSplit runs one split end to end inside its own staging directory,
// which is removed whether the split succeeds or fails.
func uploadSplit(
	cmd *cobra.Command,
	streamer *corpus.Streamer,
	client *hub.Client,
	src corpus.Source,
	cfg *config.Config,
	repoID string,
) (SplitSummary, error) {
	ctx := cmd.Context()

	staging, err := newStagingDir(cfg.Shard.StagingDir)
	if err != nil {
		return SplitSummary{Split: src.Split}, err
	}
	defer func() { _ = os.RemoveAll(staging) }()

	return runSplit(ctx, streamer, src, cfg.Shard.Size, staging, func(ctx context.Context, sh shard.Shard) error {
		message := fmt.Sprintf("Add %s shard %d", sh.Split, sh.Index)
		if err := client.UploadFile(ctx, repoID, sh.Path, sh.RepoPath(), message); err != nil {
			return err
		}
		// The shard is on the Hub; dropping the local copy bounds disk usage.
		return os.Remove(sh.Path)
	})
}
