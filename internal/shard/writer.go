package shard

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spicor/shardpack/internal/corpus"
)

// Shard member and file naming. Prefixes embed the shard number and the
// record's index within the shard, so they are unique by construction.
const (
	memberPrefixFormat = "%05d_%06d"
	shardNameFormat    = "%s_%05d.tar"

	audioMemberExt   = ".wav"
	sidecarMemberExt = ".json"

	memberMode = 0644
)

// Common writer errors.
var (
	ErrWriterClosed    = errors.New("shard writer is closed")
	ErrDuplicatePrefix = errors.New("duplicate member prefix in shard")
)

// Shard describes one finalized archive ready for upload.
type Shard struct {
	// Split is the dataset partition this shard belongs to.
	Split string

	// Index is the 1-based sequential shard number within the split.
	Index int

	// Path is the local staging path of the TAR file.
	Path string

	// Records is the number of record pairs in the shard.
	Records int

	// Bytes is the size of the TAR file.
	Bytes int64
}

// Name returns the shard's file name, e.g. "train_00001.tar".
func (s Shard) Name() string {
	return fmt.Sprintf(shardNameFormat, s.Split, s.Index)
}

// RepoPath returns the destination path inside the dataset repository,
// e.g. "data/train/train_00001.tar".
func (s Shard) RepoPath() string {
	return path.Join("data", s.Split, s.Name())
}

// Writer writes paired audio+sidecar members into one shard TAR file.
// Not safe for concurrent use; the pipeline is sequential by design.
type Writer struct {
	split string
	index int

	file     *os.File
	tw       *tar.Writer
	count    int
	prefixes map[string]struct{}
	closed   bool
}

// NewWriter creates the shard TAR file in dir and returns a writer for it.
func NewWriter(dir, split string, index int) (*Writer, error) {
	name := fmt.Sprintf(shardNameFormat, split, index)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating shard file %s: %w", name, err)
	}

	return &Writer{
		split:    split,
		index:    index,
		file:     f,
		tw:       tar.NewWriter(f),
		prefixes: map[string]struct{}{},
	}, nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	return w.count
}

// Append writes the record's audio member followed by its JSON sidecar
// member under the next prefix. When size is negative the audio is spooled
// through memory to learn its length; otherwise it is streamed straight
// into the archive.
func (w *Writer) Append(rec corpus.Record, audio io.Reader, size int64) error {
	if w.closed {
		return ErrWriterClosed
	}

	prefix := fmt.Sprintf(memberPrefixFormat, w.index, w.count)
	if _, exists := w.prefixes[prefix]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePrefix, prefix)
	}

	if size < 0 {
		var buf bytes.Buffer
		n, err := buf.ReadFrom(audio)
		if err != nil {
			return fmt.Errorf("buffering audio for %s: %w", rec.FileID, err)
		}
		audio = &buf
		size = n
	}

	if err := w.writeMember(prefix+audioMemberExt, audio, size); err != nil {
		return fmt.Errorf("writing audio member for %s: %w", rec.FileID, err)
	}

	sidecar, err := rec.MarshalSidecar()
	if err != nil {
		return fmt.Errorf("marshalling sidecar for %s: %w", rec.FileID, err)
	}
	if err := w.writeMember(prefix+sidecarMemberExt, bytes.NewReader(sidecar), int64(len(sidecar))); err != nil {
		return fmt.Errorf("writing sidecar member for %s: %w", rec.FileID, err)
	}

	w.prefixes[prefix] = struct{}{}
	w.count++
	return nil
}

// writeMember writes one TAR member.
func (w *Writer) writeMember(name string, r io.Reader, size int64) error {
	hdr := &tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     memberMode,
		Size:     size,
		ModTime:  time.Now(),
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.CopyN(w.tw, r, size); err != nil {
		return err
	}
	return nil
}

// Close finalizes the TAR and returns the shard descriptor.
func (w *Writer) Close() (Shard, error) {
	if w.closed {
		return Shard{}, ErrWriterClosed
	}
	w.closed = true

	if err := w.tw.Close(); err != nil {
		_ = w.file.Close()
		return Shard{}, fmt.Errorf("finalizing shard %d: %w", w.index, err)
	}

	info, err := w.file.Stat()
	if err != nil {
		_ = w.file.Close()
		return Shard{}, fmt.Errorf("stat shard %d: %w", w.index, err)
	}
	if err := w.file.Close(); err != nil {
		return Shard{}, fmt.Errorf("closing shard %d: %w", w.index, err)
	}

	return Shard{
		Split:   w.split,
		Index:   w.index,
		Path:    w.file.Name(),
		Records: w.count,
		Bytes:   info.Size(),
	}, nil
}

// Abort discards the partially written shard and removes its file.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	_ = w.tw.Close()
	_ = w.file.Close()
	_ = os.Remove(w.file.Name())
}
