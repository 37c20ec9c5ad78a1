package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/spicor/shardpack/internal/config"
	"github.com/spicor/shardpack/internal/logging"
)

// EnvToken is the environment variable holding the Hub access token.
const EnvToken = "HF_TOKEN"

// repoTypeDataset is the only repo type this client talks to.
const repoTypeDataset = "dataset"

// defaultRevision is the branch commits are written to.
const defaultRevision = "main"

// retryBackoff is the pause before the single retry of a failed request.
const retryBackoff = 2 * time.Second

// Common client errors.
var (
	ErrMissingToken  = errors.New("hub token is not set (export HF_TOKEN)")
	ErrInvalidRepoID = errors.New("repo id must be namespace/name")
)

// Client talks to the Hugging Face Hub API for one dataset repository
// destination.
type Client struct {
	endpoint        string
	token           string
	http            *http.Client
	partConcurrency int
}

// NewClient creates a Hub client from configuration and an access token.
func NewClient(cfg config.HubConfig, token string) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = config.DefaultHubEndpoint
	}

	concurrency := cfg.PartConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Client{
		endpoint:        endpoint,
		token:           token,
		http:            &http.Client{},
		partConcurrency: concurrency,
	}, nil
}

// EnsureRepo creates the dataset repository if it does not already exist.
// An existing repo is not an error, mirroring create-if-missing semantics.
func (c *Client) EnsureRepo(ctx context.Context, repoID string, private bool) error {
	namespace, name, err := splitRepoID(repoID)
	if err != nil {
		return err
	}

	logger := c.logger(ctx)

	body := map[string]any{
		"type":         repoTypeDataset,
		"name":         name,
		"organization": namespace,
		"private":      private,
	}

	resp, err := c.postJSON(ctx, c.endpoint+"/api/repos/create", body)
	if err != nil {
		return fmt.Errorf("creating dataset repo %s: %w", repoID, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		logger.Info().Str("repo", repoID).Bool("private", private).Msg("dataset repo created")
		return nil
	case http.StatusConflict:
		logger.Debug().Str("repo", repoID).Msg("dataset repo already exists")
		return nil
	default:
		return fmt.Errorf("creating dataset repo %s: %s", repoID, readAPIError(resp))
	}
}

// logger returns the component logger for this client.
func (c *Client) logger(ctx context.Context) zerolog.Logger {
	return logging.ComponentLogger(logging.FromContext(ctx), "hub")
}

// postJSON sends an authenticated JSON POST with one retry on transient
// failure.
func (c *Client) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.doRetry(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, true)
}

// doRetry executes the request built by build, retrying once after a short
// backoff on network errors and 5xx responses. The request is rebuilt for
// the retry so the body can be re-read. authenticated controls the bearer
// header; part uploads to presigned URLs must not carry it.
func (c *Client) doRetry(ctx context.Context, build func() (*http.Request, error), authenticated bool) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		if authenticated {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("server error: %s", readAPIError(resp))
			continue
		}
		return resp, nil
	}

	return nil, lastErr
}

// splitRepoID splits "namespace/name" into its parts.
func splitRepoID(repoID string) (namespace, name string, err error) {
	parts := strings.Split(repoID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: got %q", ErrInvalidRepoID, repoID)
	}
	return parts[0], parts[1], nil
}

// readAPIError extracts a human-readable error from an API response.
func readAPIError(resp *http.Response) string {
	defer drainAndClose(resp.Body)

	var apiErr struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Sprintf("%s: %s", resp.Status, apiErr.Error)
	}
	return resp.Status
}

// drainAndClose discards any unread body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
