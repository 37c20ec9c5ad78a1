package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicor/shardpack/internal/corpus"
)

// packRecords pushes n synthetic records through a packer and returns the
// emitted shard descriptors. Shard files are removed as they are flushed,
// mirroring the upload pipeline's cleanup.
func packRecords(t *testing.T, split string, size, n int) []Shard {
	t.Helper()

	var shards []Shard
	p, err := NewPacker(t.TempDir(), split, size, func(_ context.Context, sh Shard) error {
		shards = append(shards, sh)
		return os.Remove(sh.Path)
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < n; i++ {
		rec := testRecord(fmt.Sprintf("IISc_Gujarati_AGRI_%06d", i))
		require.NoError(t, p.Add(ctx, rec, bytes.NewReader([]byte("au")), 2))
	}
	require.NoError(t, p.Flush(ctx))
	return shards
}

func TestPackerPartition(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		records     int
		wantShards  int
		wantLastLen int
	}{
		{"ExactMultiple_1000", 500, 1000, 2, 500},
		{"TrainScenario_8242", 500, 8242, 17, 242},
		{"TestScenario_858", 500, 858, 2, 358},
		{"SingleShort", 500, 3, 1, 3},
		{"Empty", 500, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards := packRecords(t, "train", tt.size, tt.records)
			require.Len(t, shards, tt.wantShards)

			total := 0
			for i, sh := range shards {
				// Sequential 1-based indexes, in order.
				assert.Equal(t, i+1, sh.Index)
				if i < len(shards)-1 {
					assert.Equal(t, tt.size, sh.Records)
				}
				total += sh.Records
			}
			if tt.wantShards > 0 {
				assert.Equal(t, tt.wantLastLen, shards[len(shards)-1].Records)
			}
			// Union of shard contents covers the input exactly once.
			assert.Equal(t, tt.records, total)
		})
	}
}

func TestPackerCoversInputExactlyOnce(t *testing.T) {
	// Small shard size so the member-level check stays cheap.
	dir := t.TempDir()
	seen := map[string]int{}

	p, err := NewPacker(dir, "test", 3, func(_ context.Context, sh Shard) error {
		members := readShardMembers(t, sh.Path)
		for name, data := range members {
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			var sc corpus.Sidecar
			if err := json.Unmarshal(data, &sc); err != nil {
				return err
			}
			// Sidecar file_id pairs with the wav under the same prefix.
			prefix := strings.TrimSuffix(name, ".json")
			if _, ok := members[prefix+".wav"]; !ok {
				return fmt.Errorf("missing wav for prefix %s", prefix)
			}
			seen[sc.FileID]++
		}
		return os.Remove(sh.Path)
	})
	require.NoError(t, err)

	ctx := context.Background()
	const n = 8
	for i := 0; i < n; i++ {
		rec := testRecord(fmt.Sprintf("IISc_Gujarati_SPOR_%06d", i))
		require.NoError(t, p.Add(ctx, rec, bytes.NewReader([]byte("au")), 2))
	}
	require.NoError(t, p.Flush(ctx))

	require.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "record %s duplicated", id)
	}
}

func TestPackerHaltsOnFlushError(t *testing.T) {
	boom := errors.New("upload rejected")
	calls := 0

	p, err := NewPacker(t.TempDir(), "train", 2, func(context.Context, Shard) error {
		calls++
		return boom
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Add(ctx, testRecord("a_AGRI_1"), bytes.NewReader([]byte("x")), 1))

	err = p.Add(ctx, testRecord("a_AGRI_2"), bytes.NewReader([]byte("y")), 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "shard 1 failed")
	assert.Equal(t, 1, calls)

	// Packer refuses further work after a failure.
	err = p.Add(ctx, testRecord("a_AGRI_3"), bytes.NewReader([]byte("z")), 1)
	assert.ErrorIs(t, err, ErrPackerClosed)
	assert.ErrorIs(t, p.Flush(ctx), ErrPackerClosed)
}

func TestPackerContextCancellation(t *testing.T) {
	p, err := NewPacker(t.TempDir(), "train", 10, func(context.Context, Shard) error {
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Add(ctx, testRecord("a_AGRI_1"), bytes.NewReader([]byte("x")), 1))

	cancel()
	err = p.Add(ctx, testRecord("a_AGRI_2"), bytes.NewReader([]byte("y")), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPackerValidation(t *testing.T) {
	t.Run("InvalidSize", func(t *testing.T) {
		_, err := NewPacker(t.TempDir(), "train", 0, func(context.Context, Shard) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidShardSize)

		_, err = NewPacker(t.TempDir(), "train", MaxSize+1, func(context.Context, Shard) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidShardSize)
	})

	t.Run("NilShardFunc", func(t *testing.T) {
		_, err := NewPacker(t.TempDir(), "train", 10, nil)
		assert.ErrorIs(t, err, ErrNilShardFunc)
	})
}

func TestPackerProgress(t *testing.T) {
	var fromCallback []int

	p, err := NewPacker(t.TempDir(), "train", 2, func(_ context.Context, sh Shard) error {
		return os.Remove(sh.Path)
	})
	require.NoError(t, err)
	p.WithProgressFunc(func(progress *Progress) {
		records, _, _ := progress.Snapshot()
		fromCallback = append(fromCallback, records)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("a_AGRI_%d", i))
		require.NoError(t, p.Add(ctx, rec, bytes.NewReader([]byte("x")), 1))
	}
	require.NoError(t, p.Flush(ctx))

	records, shards, bytesTotal := p.Progress().Snapshot()
	assert.Equal(t, 5, records)
	assert.Equal(t, 3, shards)
	assert.Positive(t, bytesTotal)
	assert.Equal(t, []int{2, 4, 5}, fromCallback)
}
