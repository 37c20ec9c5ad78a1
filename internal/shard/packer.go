package shard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spicor/shardpack/internal/corpus"
)

// Shard size bounds.
const (
	// DefaultSize is the default number of records per shard.
	DefaultSize = 500

	// MinSize is the minimum allowed shard size.
	MinSize = 1

	// MaxSize is the maximum allowed shard size.
	MaxSize = 100000
)

// Common packer errors.
var (
	ErrInvalidShardSize = errors.New("shard size must be between 1 and 100000")
	ErrNilShardFunc     = errors.New("shard callback cannot be nil")
	ErrPackerClosed     = errors.New("packer is closed")
)

// ShardFunc consumes one finalized shard. It is invoked synchronously;
// the next shard is not started until it returns. A non-nil error halts
// the packer.
type ShardFunc func(ctx context.Context, sh Shard) error

// ProgressFunc is an optional callback invoked after each finalized shard.
type ProgressFunc func(progress *Progress)

// Packer groups a sequence of records into fixed-size shards for one
// split. It holds at most one open shard at a time: records are written
// through as they arrive and the shard is flushed to the consumer when it
// reaches the configured size or when Flush is called at end of input.
type Packer struct {
	dir   string
	split string
	size  int
	flush ShardFunc

	onProgress ProgressFunc
	progress   *Progress

	cur    *Writer
	index  int
	closed bool
}

// NewPacker creates a packer staging shards in dir for the given split.
func NewPacker(dir, split string, size int, flush ShardFunc) (*Packer, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidShardSize, size)
	}
	if flush == nil {
		return nil, ErrNilShardFunc
	}

	return &Packer{
		dir:      dir,
		split:    split,
		size:     size,
		flush:    flush,
		progress: NewProgress(split, size),
	}, nil
}

// WithProgressFunc sets a progress callback for the packer.
func (p *Packer) WithProgressFunc(fn ProgressFunc) *Packer {
	p.onProgress = fn
	return p
}

// Add appends one record to the current shard, opening a new shard when
// none is in flight and flushing it when it reaches the configured size.
// Any error leaves the packer unusable for further records; the caller is
// expected to abandon the run.
func (p *Packer) Add(ctx context.Context, rec corpus.Record, audio io.Reader, size int64) error {
	if p.closed {
		return ErrPackerClosed
	}

	// Cancellation is observed between records, never mid-member.
	select {
	case <-ctx.Done():
		p.abort()
		return ctx.Err()
	default:
	}

	if p.cur == nil {
		p.index++
		w, err := NewWriter(p.dir, p.split, p.index)
		if err != nil {
			p.closed = true
			return err
		}
		p.cur = w
	}

	if err := p.cur.Append(rec, audio, size); err != nil {
		p.abort()
		return err
	}

	if p.cur.Count() >= p.size {
		return p.finalize(ctx)
	}
	return nil
}

// Flush finalizes and emits the in-flight shard, if any. Call it once at
// end of input; the packer is closed afterwards.
func (p *Packer) Flush(ctx context.Context) error {
	if p.closed {
		return ErrPackerClosed
	}
	defer func() { p.closed = true }()

	if p.cur == nil || p.cur.Count() == 0 {
		if p.cur != nil {
			p.cur.Abort()
			p.cur = nil
		}
		return nil
	}
	return p.finalize(ctx)
}

// Abort discards the in-flight shard and closes the packer.
func (p *Packer) Abort() {
	p.abort()
}

// Progress returns the packer's progress tracker.
func (p *Packer) Progress() *Progress {
	return p.progress
}

// finalize closes the current shard and hands it to the consumer.
func (p *Packer) finalize(ctx context.Context) error {
	sh, err := p.cur.Close()
	p.cur = nil
	if err != nil {
		p.closed = true
		return err
	}

	p.progress.AddShard(sh.Records, sh.Bytes)
	if p.onProgress != nil {
		p.onProgress(p.progress)
	}

	if err := p.flush(ctx, sh); err != nil {
		p.closed = true
		return fmt.Errorf("shard %d failed: %w", sh.Index, err)
	}
	return nil
}

// abort discards the in-flight shard and marks the packer closed.
func (p *Packer) abort() {
	if p.cur != nil {
		p.cur.Abort()
		p.cur = nil
	}
	p.closed = true
}
