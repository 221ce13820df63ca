package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assetprocessor/internal/custom_errors"
	"assetprocessor/internal/models"
)

// JobAPI is the remote job/asset store as seen by the poller, the workers and
// the pipeline.
type JobAPI interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error
	GetAsset(ctx context.Context, assetID string) (*models.Asset, error)
	GetAssetBytes(ctx context.Context, fileURL string) ([]byte, error)
	PatchAsset(ctx context.Context, assetID string, patch models.AssetPatch) error
}

// Client talks JSON over HTTP to the store, authenticating with a bearer key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// ListJobs returns every job the store currently reports.
func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/asset-processing-job", nil, &jobs); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// PatchJob applies a partial update. Every patch also refreshes lastHeartBeat,
// so a status write counts as a liveness signal.
func (c *Client) PatchJob(ctx context.Context, jobID string, patch models.JobPatch) error {
	if patch.LastHeartbeat == nil {
		now := c.now().UTC()
		patch.LastHeartbeat = &now
	}
	endpoint := c.baseURL + "/asset-processing-job?jobId=" + url.QueryEscape(jobID)
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, patch, nil); err != nil {
		return fmt.Errorf("patch job %s: %w", jobID, err)
	}
	return nil
}

// GetAsset returns nil without error when the store has no such asset.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	endpoint := c.baseURL + "/asset?assetId=" + url.QueryEscape(assetID)
	var asset models.Asset
	err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &asset)
	if err != nil {
		var statusErr *StatusError
		if asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return &asset, nil
}

// GetAssetBytes downloads the raw file. fileURL is absolute (blob storage),
// so no auth header is attached.
func (c *Client) GetAssetBytes(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch asset file: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset file: %w: %v", custom_errors.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch asset file: %w", newStatusError(resp))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read asset file: %w: %v", custom_errors.ErrTransientFetch, err)
	}
	return data, nil
}

func (c *Client) PatchAsset(ctx context.Context, assetID string, patch models.AssetPatch) error {
	endpoint := c.baseURL + "/asset?assetId=" + url.QueryEscape(assetID)
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, patch, nil); err != nil {
		return fmt.Errorf("patch asset %s: %w", assetID, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", custom_errors.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
