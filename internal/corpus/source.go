package corpus

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spicor/shardpack/internal/logging"
)

// audioExtension is the audio member suffix inside source archives.
const audioExtension = ".wav"

// Common streaming errors.
var (
	ErrEmptySourceURL = errors.New("source URL cannot be empty")
	ErrBadStatus      = errors.New("unexpected HTTP status fetching source archive")
)

// Source describes one split of the corpus and where its archive lives.
type Source struct {
	// Split is the dataset partition name (train, test).
	Split string

	// URL locates the tar.gz source archive.
	URL string
}

// RecordFunc receives one record together with a reader over its audio
// bytes and the audio size. The reader is only valid until the callback
// returns; a non-nil error aborts the stream.
type RecordFunc func(rec Record, audio io.Reader, size int64) error

// Streamer streams records out of remote source archives one member at a
// time.
type Streamer struct {
	client  *http.Client
	speaker Speaker
}

// NewStreamer creates a streamer that fetches archives with client and
// stamps speaker onto every record. A nil client uses http.DefaultClient.
func NewStreamer(client *http.Client, speaker Speaker) *Streamer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Streamer{
		client:  client,
		speaker: speaker,
	}
}

// Stream fetches the source archive and invokes fn once per wav member, in
// archive order. The transcript table member is consumed when encountered;
// wav members without a transcript entry yield records with empty text and
// domain. Returns the number of records delivered before any error.
func (s *Streamer) Stream(ctx context.Context, src Source, fn RecordFunc) (int, error) {
	if src.URL == "" {
		return 0, ErrEmptySourceURL
	}
	if fn == nil {
		return 0, errors.New("record callback cannot be nil")
	}

	logger := logging.ComponentLogger(logging.FromContext(ctx), "corpus")
	logger.Info().Str("split", src.Split).Msg("streaming source archive")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("building source request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching source archive for split %q: %w", src.Split, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s (split %q)", ErrBadStatus, resp.Status, src.Split)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("opening gzip stream for split %q: %w", src.Split, err)
	}
	defer func() { _ = gz.Close() }()

	return s.walk(tar.NewReader(gz), src, fn, logger)
}

// walk iterates the archive members and delivers records.
func (s *Streamer) walk(tr *tar.Reader, src Source, fn RecordFunc, logger zerolog.Logger) (int, error) {
	transcripts := map[string]transcriptEntry{}
	delivered := 0

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return delivered, fmt.Errorf("reading source archive for split %q: %w", src.Split, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(hdr.Name)

		if strings.HasSuffix(name, transcriptTableSuffix) {
			transcripts, err = decodeTranscriptTable(tr)
			if err != nil {
				return delivered, err
			}
			logger.Info().
				Str("split", src.Split).
				Int("transcripts", len(transcripts)).
				Msg("loaded transcript table")
			continue
		}

		if !strings.HasSuffix(name, audioExtension) {
			continue
		}

		fileID := strings.TrimSuffix(name, audioExtension)
		entry := transcripts[fileID]

		rec := Record{
			FileID:        fileID,
			Text:          entry.Transcript,
			Category:      CategoryFromFileID(fileID),
			Domain:        entry.Domain,
			SpeakerID:     s.speaker.ID,
			SpeakerGender: s.speaker.Gender,
			SpeakerAge:    s.speaker.Age,
			Language:      s.speaker.Language,
		}

		if err := fn(rec, tr, hdr.Size); err != nil {
			return delivered, err
		}
		delivered++
	}

	logger.Info().Str("split", src.Split).Int("records", delivered).Msg("source archive exhausted")
	return delivered, nil
}
