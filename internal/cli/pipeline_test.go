package cli

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicor/shardpack/internal/config"
)

func testConfigWithSources() *config.Config {
	cfg := config.Defaults()
	cfg.Corpus.Sources = []config.SourceConfig{
		{Split: "train", URL: "https://example.com/train.tar.gz"},
		{Split: "test", URL: "https://example.com/test.tar.gz"},
	}
	return cfg
}

func TestSelectSources(t *testing.T) {
	cfg := testConfigWithSources()

	t.Run("All", func(t *testing.T) {
		sources, err := selectSources(cfg, nil)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, "train", sources[0].Split)
		assert.Equal(t, "test", sources[1].Split)
	})

	t.Run("Filtered", func(t *testing.T) {
		sources, err := selectSources(cfg, []string{"test"})
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Equal(t, "test", sources[0].Split)
	})

	t.Run("NoMatch", func(t *testing.T) {
		_, err := selectSources(cfg, []string{"validation"})
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("NoneConfigured", func(t *testing.T) {
		_, err := selectSources(config.Defaults(), nil)
		assert.ErrorIs(t, err, ErrNoSources)
	})
}

func TestNewStagingDir(t *testing.T) {
	base := t.TempDir()

	dir1, err := newStagingDir(base)
	require.NoError(t, err)
	dir2, err := newStagingDir(base)
	require.NoError(t, err)

	assert.NotEqual(t, dir1, dir2)
	assert.True(t, strings.HasPrefix(dir1, base))

	info, err := os.Stat(dir1)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSpeakerFromConfig(t *testing.T) {
	cfg := config.Defaults()
	sp := speakerFromConfig(cfg)
	assert.Equal(t, "Spk0001", sp.ID)
	assert.Equal(t, 33, sp.Age)
	assert.Equal(t, "gu", sp.Language)
}
