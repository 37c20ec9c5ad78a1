package cli

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spicor/shardpack/internal/corpus"
)

// ErrShardInvalid is returned when a shard fails verification.
var ErrShardInvalid = errors.New("shard verification failed")

// VerifyReport is the outcome of verifying one shard file.
type VerifyReport struct {
	Path     string
	Records  int
	Problems []string
}

// newVerifyCmd creates the "verify" subcommand, which checks the pairing
// invariant of existing shard files.
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <shard.tar> [more.tar...]",
		Short: "Check the audio/metadata pairing invariant of shard files",
		Long: `Walk each shard TAR and check that every member prefix carries exactly
one .wav entry and one .json entry, that no prefix repeats, and that each
sidecar decodes to metadata with a file_id. Exits non-zero when any shard
fails.`,
		Example: `  shardpack verify ./shards/train_00001.tar
  shardpack verify ./shards/*.tar`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args)
		},
	}
}

// runVerify verifies every named shard and reports per-file results.
func runVerify(cmd *cobra.Command, paths []string) error {
	failed := 0
	for _, path := range paths {
		report, err := VerifyShard(path)
		if err != nil {
			return err
		}

		if len(report.Problems) == 0 {
			cmd.Printf("%s: ok (%d records)\n", report.Path, report.Records)
			continue
		}

		failed++
		cmd.Printf("%s: INVALID (%d records)\n", report.Path, report.Records)
		for _, p := range report.Problems {
			cmd.Printf("  - %s\n", p)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d shards invalid", ErrShardInvalid, failed, len(paths))
	}
	return nil
}

// VerifyShard walks one shard TAR and collects invariant violations.
// An unreadable file is an error; a readable file with violations is a
// report with Problems.
func VerifyShard(path string) (VerifyReport, error) {
	report := VerifyReport{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("opening shard: %w", err)
	}
	defer func() { _ = f.Close() }()

	type pair struct {
		wav     bool
		sidecar bool
		fileID  string
	}
	pairs := map[string]*pair{}
	var order []string

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("reading shard: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			report.Problems = append(report.Problems, fmt.Sprintf("unexpected non-file member %q", hdr.Name))
			continue
		}

		switch {
		case strings.HasSuffix(hdr.Name, ".wav"):
			prefix := strings.TrimSuffix(hdr.Name, ".wav")
			p := pairs[prefix]
			if p == nil {
				p = &pair{}
				pairs[prefix] = p
				order = append(order, prefix)
			}
			if p.wav {
				report.Problems = append(report.Problems, fmt.Sprintf("duplicate audio member for prefix %q", prefix))
			}
			p.wav = true

		case strings.HasSuffix(hdr.Name, ".json"):
			prefix := strings.TrimSuffix(hdr.Name, ".json")
			p := pairs[prefix]
			if p == nil {
				p = &pair{}
				pairs[prefix] = p
				order = append(order, prefix)
			}
			if p.sidecar {
				report.Problems = append(report.Problems, fmt.Sprintf("duplicate sidecar member for prefix %q", prefix))
				continue
			}
			p.sidecar = true

			var sc corpus.Sidecar
			if err := json.NewDecoder(tr).Decode(&sc); err != nil {
				report.Problems = append(report.Problems, fmt.Sprintf("sidecar %q does not decode: %v", hdr.Name, err))
				continue
			}
			if sc.FileID == "" {
				report.Problems = append(report.Problems, fmt.Sprintf("sidecar %q has empty file_id", hdr.Name))
				continue
			}
			p.fileID = sc.FileID

		default:
			report.Problems = append(report.Problems, fmt.Sprintf("unexpected member %q", hdr.Name))
		}
	}

	for _, prefix := range order {
		p := pairs[prefix]
		if !p.wav {
			report.Problems = append(report.Problems, fmt.Sprintf("prefix %q has a sidecar but no audio", prefix))
		}
		if !p.sidecar && p.wav {
			report.Problems = append(report.Problems, fmt.Sprintf("prefix %q has audio but no sidecar", prefix))
		}
	}

	report.Records = len(pairs)
	return report, nil
}
