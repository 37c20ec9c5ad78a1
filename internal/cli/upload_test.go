package cli

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicor/shardpack/internal/config"
)

// buildCorpusArchive assembles a tar.gz source archive with a transcript
// table and n wav members.
func buildCorpusArchive(t *testing.T, n int) []byte {
	t.Helper()

	transcripts := map[string]map[string]string{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("IISc_Gujarati_AGRI_%06d", i)
		transcripts[id] = map[string]string{"Transcript": "વાક્ય", "Domain": "Agriculture"}
	}
	table, err := json.Marshal(map[string]any{"Transcripts": transcripts})
	require.NoError(t, err)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	write := func(name string, body []byte) {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(body)),
		}))
		_, err := tw.Write(body)
		require.NoError(t, err)
	}

	write("corpus/Gujarati_Transcripts.json", table)
	for i := 0; i < n; i++ {
		write(fmt.Sprintf("corpus/wav/IISc_Gujarati_AGRI_%06d.wav", i), []byte("RIFFaudio"))
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// cliHubFake answers just enough of the Hub API for upload runs: repo
// creation, preupload (always inline), and commits.
type cliHubFake struct {
	mu             sync.Mutex
	repoCreated    bool
	committedPaths []string
}

func (f *cliHubFake) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.URL.Path == "/api/repos/create":
			f.repoCreated = true
			w.WriteHeader(http.StatusOK)

		case strings.Contains(r.URL.Path, "/preupload/"):
			var req struct {
				Files []struct {
					Path string `json:"path"`
				} `json:"files"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			files := make([]map[string]any, len(req.Files))
			for i, file := range req.Files {
				files[i] = map[string]any{"path": file.Path, "uploadMode": "regular"}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"files": files})

		case strings.Contains(r.URL.Path, "/commit/"):
			dec := json.NewDecoder(r.Body)
			for {
				var line struct {
					Key   string `json:"key"`
					Value struct {
						Path string `json:"path"`
					} `json:"value"`
				}
				if err := dec.Decode(&line); err != nil {
					break
				}
				if line.Key == "file" {
					f.committedPaths = append(f.committedPaths, line.Value.Path)
				}
			}
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// writeTestConfig points shardpack at the fake corpus and hub servers.
func writeTestConfig(t *testing.T, corpusURL, hubURL, staging string, shardSize int) string {
	t.Helper()

	content := fmt.Sprintf(`
corpus:
  sources:
    - split: train
      url: %s/train.tar.gz
  speaker:
    id: Spk0001
    gender: Female
    age: 33
    language: gu
shard:
  size: %d
  staging_dir: %s
hub:
  endpoint: %s
  part_concurrency: 2
logging:
  level: error
`, corpusURL, shardSize, staging, hubURL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestUploadEndToEnd(t *testing.T) {
	defer config.ResetGlobalConfigForTest()
	t.Setenv("HF_TOKEN", "hf_test_token")

	archive := buildCorpusArchive(t, 7)
	corpusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(corpusSrv.Close)

	fake := &cliHubFake{}
	hubSrv := httptest.NewServer(fake.handler())
	t.Cleanup(hubSrv.Close)

	staging := t.TempDir()
	cfgPath := writeTestConfig(t, corpusSrv.URL, hubSrv.URL, staging, 3)

	root := NewRootCmd("test")
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"upload", "spicor/gujarati-tts", "--config", cfgPath})

	require.NoError(t, root.Execute())

	assert.True(t, fake.repoCreated)
	// 7 records at shard size 3: shards of 3, 3, 1.
	assert.Equal(t, []string{
		"data/train/train_00001.tar",
		"data/train/train_00002.tar",
		"data/train/train_00003.tar",
	}, fake.committedPaths)

	// Staging was cleaned up after the run.
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Contains(t, out.String(), "train: 7 records in 3 shards")
}

func TestUploadMissingToken(t *testing.T) {
	defer config.ResetGlobalConfigForTest()
	t.Setenv("HF_TOKEN", "")

	cfgPath := writeTestConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1", t.TempDir(), 3)

	root := NewRootCmd("test")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"upload", "spicor/gujarati-tts", "--config", cfgPath})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HF_TOKEN")
}

func TestUploadNoSourcesConfigured(t *testing.T) {
	defer config.ResetGlobalConfigForTest()
	t.Setenv("HF_TOKEN", "hf_test_token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0600))

	root := NewRootCmd("test")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"upload", "spicor/gujarati-tts", "--config", path})

	err := root.Execute()
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestPackEndToEnd(t *testing.T) {
	defer config.ResetGlobalConfigForTest()

	archive := buildCorpusArchive(t, 5)
	corpusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(corpusSrv.Close)

	cfgPath := writeTestConfig(t, corpusSrv.URL, "http://unused.invalid", t.TempDir(), 2)
	outDir := filepath.Join(t.TempDir(), "shards")

	root := NewRootCmd("test")
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"pack", "--out", outDir, "--config", cfgPath})

	require.NoError(t, root.Execute())

	// 5 records at shard size 2: shards of 2, 2, 1 — all kept on disk.
	for i := 1; i <= 3; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("train_%05d.tar", i))
		report, err := VerifyShard(path)
		require.NoError(t, err)
		assert.Empty(t, report.Problems)
	}
	assert.Contains(t, out.String(), "train: 5 records in 3 shards")
}
