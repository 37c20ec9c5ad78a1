package shard

import (
	"sync"
	"time"
)

// Progress tracks how far a split's packing run has gotten. It provides
// thread-safe access so log and UI callbacks can read it while the
// pipeline advances.
type Progress struct {
	// Split is the dataset partition being packed.
	Split string

	// Records is the number of records flushed into finalized shards.
	Records int

	// Shards is the number of finalized shards.
	Shards int

	// Bytes is the total size of finalized shards.
	Bytes int64

	// StartTime is when packing started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	// shardSize is the configured records-per-shard.
	shardSize int

	// mu protects concurrent access to progress fields.
	mu sync.RWMutex
}

// NewProgress creates a progress tracker for one split.
func NewProgress(split string, shardSize int) *Progress {
	now := time.Now()
	return &Progress{
		Split:          split,
		StartTime:      now,
		LastUpdateTime: now,
		shardSize:      shardSize,
	}
}

// AddShard records one finalized shard. Thread-safe.
func (p *Progress) AddShard(records int, bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Records += records
	p.Shards++
	p.Bytes += bytes
	p.LastUpdateTime = time.Now()
}

// Snapshot returns a consistent copy of the counters.
func (p *Progress) Snapshot() (records, shards int, bytes int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Records, p.Shards, p.Bytes
}

// Elapsed returns the time since packing started.
func (p *Progress) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.StartTime)
}
