// Package syncso talks to the sync.so lip-sync generation API.
//
// POST /generate submits a video and audio pair and returns a generation id.
// GET /generate/{id} reports the generation status, and outputUrl once it
// has completed.
package syncso

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dubline/internal/services"
)

const (
	DefaultBaseURL  = "https://api.sync.so/v2"
	DefaultModel    = "lipsync-2"
	DefaultSyncMode = "cut_off"
)

// Status values reported by the generate endpoint.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusRejected   = "REJECTED"
	StatusCanceled   = "CANCELED"
)

// Config carries credentials and generation options.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	SyncMode string
}

// Generation is the subset of the API's generation object dubline reads.
type Generation struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	OutputURL string `json:"outputUrl"`
	Error     string `json:"error"`
}

// Client submits and polls generations.
type Client struct {
	cfg    Config
	client services.HTTPDoer
}

// New builds a client; httpClient defaults to a 60s timeout client.
func New(cfg Config, httpClient services.HTTPDoer) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SyncMode == "" {
		cfg.SyncMode = DefaultSyncMode
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, client: httpClient}
}

type mediaInput struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type generateRequest struct {
	Model   string       `json:"model"`
	Input   []mediaInput `json:"input"`
	Options struct {
		SyncMode string `json:"sync_mode"`
	} `json:"options"`
}

// Submit starts a generation from publicly fetchable video and audio URLs.
func (c *Client) Submit(ctx context.Context, videoURL, audioURL string) (Generation, error) {
	payload := generateRequest{
		Model: c.cfg.Model,
		Input: []mediaInput{{Type: "video", URL: videoURL}, {Type: "audio", URL: audioURL}},
	}
	payload.Options.SyncMode = c.cfg.SyncMode
	body, err := json.Marshal(payload)
	if err != nil {
		return Generation{}, fmt.Errorf("encode generate request: %w", err)
	}
	var gen Generation
	if err := c.do(ctx, http.MethodPost, "/generate", bytes.NewReader(body), "submit", false, &gen); err != nil {
		return Generation{}, err
	}
	if strings.TrimSpace(gen.ID) == "" {
		return Generation{}, services.Wrap(services.ErrInvalidResponse, "lipsync", "submit", "response has no generation id", nil)
	}
	return gen, nil
}

// Get fetches the current state of a generation. An unknown id returns an
// error marked services.ErrJobNotFound.
func (c *Client) Get(ctx context.Context, id string) (Generation, error) {
	var gen Generation
	if err := c.do(ctx, http.MethodGet, "/generate/"+url.PathEscape(id), nil, "poll", true, &gen); err != nil {
		return Generation{}, err
	}
	if strings.TrimSpace(gen.Status) == "" {
		return Generation{}, services.Wrap(services.ErrInvalidResponse, "lipsync", "poll", "response has no status", nil)
	}
	gen.Status = strings.ToUpper(strings.TrimSpace(gen.Status))
	return gen, nil
}

// HealthCheck confirms the API key is accepted. An unknown generation id
// answering 404 proves authentication succeeded.
func (c *Client) HealthCheck(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/generate/00000000-0000-0000-0000-000000000000", nil, "health", true, nil)
	if err == nil || errors.Is(err, services.ErrJobNotFound) {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, op string, notFoundIsJob bool, out any) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "lipsync", op, "api key required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "lipsync", op, "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransport, "lipsync", op, "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.WrapHTTPStatus("lipsync", op, resp.StatusCode, string(raw), notFoundIsJob)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return services.Wrap(services.ErrInvalidResponse, "lipsync", op, "decode response", err)
	}
	return nil
}
