package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/spicor/shardpack/internal/config"
	"github.com/spicor/shardpack/internal/corpus"
	"github.com/spicor/shardpack/internal/shard"
)

// ErrNoSources is returned when the configuration names no corpus sources.
var ErrNoSources = errors.New("no corpus sources configured")

// SplitSummary is the per-split outcome reported after a run.
type SplitSummary struct {
	Split   string
	Records int
	Shards  int
	Bytes   int64
}

// runSplit streams one source through a packer, flushing each finalized
// shard to the given consumer. The whole pipeline is sequential: one
// record at a time, one shard flushed before the next is started.
func runSplit(
	ctx context.Context,
	streamer *corpus.Streamer,
	src corpus.Source,
	shardSize int,
	staging string,
	flush shard.ShardFunc,
) (SplitSummary, error) {
	summary := SplitSummary{Split: src.Split}

	packer, err := shard.NewPacker(staging, src.Split, shardSize, flush)
	if err != nil {
		return summary, err
	}
	packer.WithProgressFunc(func(p *shard.Progress) {
		records, shards, bytes := p.Snapshot()
		logger.Info().
			Str("split", src.Split).
			Int("records", records).
			Int("shards", shards).
			Int64("bytes", bytes).
			Msg("shard finalized")
	})

	_, err = streamer.Stream(ctx, src, func(rec corpus.Record, audio io.Reader, size int64) error {
		return packer.Add(ctx, rec, audio, size)
	})
	if err != nil {
		packer.Abort()
		return summary, fmt.Errorf("split %q: %w", src.Split, err)
	}

	if err := packer.Flush(ctx); err != nil {
		return summary, fmt.Errorf("split %q: %w", src.Split, err)
	}

	summary.Records, summary.Shards, summary.Bytes = packer.Progress().Snapshot()
	return summary, nil
}

// newStagingDir creates a unique staging directory for one split's shards.
func newStagingDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "shardpack-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// selectSources returns the configured sources, filtered to the named
// splits when only is non-empty.
func selectSources(cfg *config.Config, only []string) ([]corpus.Source, error) {
	if len(cfg.Corpus.Sources) == 0 {
		return nil, ErrNoSources
	}

	wanted := map[string]bool{}
	for _, name := range only {
		wanted[name] = true
	}

	var sources []corpus.Source
	for _, sc := range cfg.Corpus.Sources {
		if len(wanted) > 0 && !wanted[sc.Split] {
			continue
		}
		sources = append(sources, corpus.Source{Split: sc.Split, URL: sc.URL})
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w matching --split %v", ErrNoSources, only)
	}
	return sources, nil
}

// speakerFromConfig converts the config speaker section to the corpus type.
func speakerFromConfig(cfg *config.Config) corpus.Speaker {
	return corpus.Speaker{
		ID:       cfg.Corpus.Speaker.ID,
		Gender:   cfg.Corpus.Speaker.Gender,
		Age:      cfg.Corpus.Speaker.Age,
		Language: cfg.Corpus.Speaker.Language,
	}
}
