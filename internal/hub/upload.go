package hub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// preuploadSampleSize is how much of the file the preupload endpoint
// receives to decide between inline and LFS upload.
const preuploadSampleSize = 512

// uploadModeLFS is the preupload answer that routes a file through LFS.
const uploadModeLFS = "lfs"

// UploadFile commits the file at localPath to pathInRepo on the dataset's
// main branch. The preupload endpoint decides whether the content travels
// inline in the commit or through the LFS batch flow.
func (c *Client) UploadFile(ctx context.Context, repoID, localPath, pathInRepo, message string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat upload file: %w", err)
	}
	size := info.Size()

	logger := c.logger(ctx)
	logger.Info().
		Str("repo", repoID).
		Str("path", pathInRepo).
		Int64("bytes", size).
		Msg("uploading file")

	mode, err := c.preupload(ctx, repoID, localPath, pathInRepo, size)
	if err != nil {
		return err
	}

	if mode != uploadModeLFS {
		content, readErr := os.ReadFile(localPath)
		if readErr != nil {
			return fmt.Errorf("reading upload file: %w", readErr)
		}
		return c.commitInline(ctx, repoID, pathInRepo, message, content)
	}

	oid, err := fileSHA256(localPath)
	if err != nil {
		return err
	}
	if err := c.uploadLFS(ctx, repoID, localPath, oid, size); err != nil {
		return err
	}
	return c.commitLFS(ctx, repoID, pathInRepo, message, oid, size)
}

// preupload asks the Hub how the file should be uploaded.
func (c *Client) preupload(ctx context.Context, repoID, localPath, pathInRepo string, size int64) (string, error) {
	sample, err := readSample(localPath)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"files": []map[string]any{{
			"path":   pathInRepo,
			"size":   size,
			"sample": base64.StdEncoding.EncodeToString(sample),
		}},
	}

	url := fmt.Sprintf("%s/api/datasets/%s/preupload/%s", c.endpoint, repoID, defaultRevision)
	resp, err := c.postJSON(ctx, url, body)
	if err != nil {
		return "", fmt.Errorf("preupload for %s: %w", pathInRepo, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("preupload for %s: %s", pathInRepo, readAPIError(resp))
	}

	var decoded struct {
		Files []struct {
			Path       string `json:"path"`
			UploadMode string `json:"uploadMode"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding preupload response: %w", err)
	}

	for _, f := range decoded.Files {
		if f.Path == pathInRepo {
			return f.UploadMode, nil
		}
	}
	return "", fmt.Errorf("preupload response missing %s", pathInRepo)
}

// commitInline commits a small file with base64 content in the commit
// payload.
func (c *Client) commitInline(ctx context.Context, repoID, pathInRepo, message string, content []byte) error {
	return c.commit(ctx, repoID, message, commitLine{
		Key: "file",
		Value: map[string]any{
			"path":     pathInRepo,
			"content":  base64.StdEncoding.EncodeToString(content),
			"encoding": "base64",
		},
	})
}

// commitLFS commits a pointer to content already uploaded through LFS.
func (c *Client) commitLFS(ctx context.Context, repoID, pathInRepo, message, oid string, size int64) error {
	return c.commit(ctx, repoID, message, commitLine{
		Key: "lfsFile",
		Value: map[string]any{
			"path": pathInRepo,
			"algo": "sha256",
			"oid":  oid,
			"size": size,
		},
	})
}

// commitLine is one NDJSON line of a commit payload.
type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// commit sends the NDJSON commit payload: a header line followed by the
// file line.
func (c *Client) commit(ctx context.Context, repoID, message string, line commitLine) error {
	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)

	header := commitLine{Key: "header", Value: map[string]any{"summary": message}}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("encoding commit header: %w", err)
	}
	if err := enc.Encode(line); err != nil {
		return fmt.Errorf("encoding commit line: %w", err)
	}

	url := fmt.Sprintf("%s/api/datasets/%s/commit/%s", c.endpoint, repoID, defaultRevision)
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload.Bytes()))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/x-ndjson")
		return req, nil
	}, true)
	if err != nil {
		return fmt.Errorf("committing to %s: %w", repoID, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("committing to %s: %s", repoID, readAPIError(resp))
	}
	return nil
}

// lfsBatchResponse is the subset of the LFS batch answer the client uses.
// For multipart transfers the header maps part numbers ("1", "2", ...) to
// presigned URLs alongside a "chunk_size" entry.
type lfsBatchResponse struct {
	Objects []struct {
		OID     string `json:"oid"`
		Actions *struct {
			Upload struct {
				Href   string            `json:"href"`
				Header map[string]string `json:"header"`
			} `json:"upload"`
			Verify *struct {
				Href string `json:"href"`
			} `json:"verify"`
		} `json:"actions"`
	} `json:"objects"`
}

// uploadLFS runs the LFS batch flow for one object: negotiate, upload the
// bytes (single PUT or multipart), then verify when asked to.
func (c *Client) uploadLFS(ctx context.Context, repoID, localPath, oid string, size int64) error {
	batch := map[string]any{
		"operation": "upload",
		"transfers": []string{"basic", "multipart"},
		"objects":   []map[string]any{{"oid": oid, "size": size}},
		"hash_algo": "sha256",
	}

	url := fmt.Sprintf("%s/datasets/%s.git/info/lfs/objects/batch", c.endpoint, repoID)
	resp, err := c.postJSON(ctx, url, batch)
	if err != nil {
		return fmt.Errorf("lfs batch for %s: %w", oid, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lfs batch for %s: %s", oid, readAPIError(resp))
	}

	var decoded lfsBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decoding lfs batch response: %w", err)
	}
	if len(decoded.Objects) == 0 {
		return fmt.Errorf("lfs batch response missing object %s", oid)
	}

	obj := decoded.Objects[0]
	if obj.Actions == nil {
		// The Hub already has this content; nothing to transfer.
		log := c.logger(ctx)
		log.Debug().Str("oid", oid).Msg("lfs object already present")
		return nil
	}

	upload := obj.Actions.Upload
	if chunkSize, ok := upload.Header["chunk_size"]; ok {
		if err := c.uploadParts(ctx, localPath, upload.Href, upload.Header, chunkSize, size); err != nil {
			return err
		}
	} else {
		if err := c.uploadWhole(ctx, localPath, upload.Href, size); err != nil {
			return err
		}
	}

	if obj.Actions.Verify != nil {
		return c.verifyLFS(ctx, obj.Actions.Verify.Href, oid, size)
	}
	return nil
}

// uploadWhole PUTs the entire file to a presigned URL.
func (c *Client) uploadWhole(ctx context.Context, localPath, href string, size int64) error {
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		f, openErr := os.Open(localPath)
		if openErr != nil {
			return nil, openErr
		}
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPut, href, f)
		if reqErr != nil {
			_ = f.Close()
			return nil, reqErr
		}
		req.ContentLength = size
		return req, nil
	}, false)
	if err != nil {
		return fmt.Errorf("lfs upload: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("lfs upload: %s", readAPIError(resp))
	}
	return nil
}

// uploadParts PUTs the file to the presigned part URLs in the batch header
// and completes the multipart upload at href. Parts are independent, so
// they run in parallel up to the configured limit; everything else in the
// pipeline stays sequential.
func (c *Client) uploadParts(ctx context.Context, localPath, href string, header map[string]string, chunkSizeStr string, size int64) error {
	chunkSize, err := strconv.ParseInt(chunkSizeStr, 10, 64)
	if err != nil || chunkSize <= 0 {
		return fmt.Errorf("invalid lfs chunk_size %q", chunkSizeStr)
	}

	partNumbers := make([]int, 0, len(header))
	partURLs := map[int]string{}
	for key, partURL := range header {
		n, convErr := strconv.Atoi(key)
		if convErr != nil {
			continue
		}
		partNumbers = append(partNumbers, n)
		partURLs[n] = partURL
	}
	sort.Ints(partNumbers)
	if len(partNumbers) == 0 {
		return fmt.Errorf("lfs multipart header carries no part urls")
	}

	etags := make([]string, len(partNumbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.partConcurrency)
	for i, partNumber := range partNumbers {
		i, partNumber := i, partNumber
		offset := int64(partNumber-1) * chunkSize
		length := chunkSize
		if offset+length > size {
			length = size - offset
		}

		g.Go(func() error {
			etag, putErr := c.uploadPart(gctx, localPath, partURLs[partNumber], offset, length)
			if putErr != nil {
				return fmt.Errorf("lfs part %d: %w", partNumber, putErr)
			}
			etags[i] = etag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	parts := make([]map[string]any, len(partNumbers))
	for i, partNumber := range partNumbers {
		parts[i] = map[string]any{"partNumber": partNumber, "etag": etags[i]}
	}

	resp, err := c.postJSON(ctx, href, map[string]any{"parts": parts})
	if err != nil {
		return fmt.Errorf("completing lfs multipart upload: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("completing lfs multipart upload: %s", readAPIError(resp))
	}
	return nil
}

// uploadPart PUTs one byte range of the file and returns the ETag.
func (c *Client) uploadPart(ctx context.Context, localPath, href string, offset, length int64) (string, error) {
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		f, openErr := os.Open(localPath)
		if openErr != nil {
			return nil, openErr
		}
		if _, seekErr := f.Seek(offset, io.SeekStart); seekErr != nil {
			_ = f.Close()
			return nil, seekErr
		}
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPut, href, io.LimitReader(f, length))
		if reqErr != nil {
			_ = f.Close()
			return nil, reqErr
		}
		req.ContentLength = length
		return req, nil
	}, false)
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Header.Get("ETag"), nil
}

// verifyLFS confirms the uploaded object with the LFS verify endpoint.
func (c *Client) verifyLFS(ctx context.Context, href, oid string, size int64) error {
	resp, err := c.postJSON(ctx, href, map[string]any{"oid": oid, "size": size})
	if err != nil {
		return fmt.Errorf("lfs verify for %s: %w", oid, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lfs verify for %s: %s", oid, readAPIError(resp))
	}
	return nil
}

// fileSHA256 hashes the file contents.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readSample reads the preupload sample bytes from the head of the file.
func readSample(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file for sampling: %w", err)
	}
	defer func() { _ = f.Close() }()

	sample := make([]byte, preuploadSampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("sampling file: %w", err)
	}
	return sample[:n], nil
}
