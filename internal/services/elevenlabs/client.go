// Package elevenlabs calls the ElevenLabs text-to-speech API.
package elevenlabs

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

	"dubline/internal/services"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_multilingual_v2"
)

// Config carries credentials and voice settings.
type Config struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

// Client renders speech. It is safe for concurrent use.
type Client struct {
	cfg    Config
	client services.HTTPDoer
}

// New builds a client; httpClient defaults to a 2 minute timeout client.
func New(cfg Config, httpClient services.HTTPDoer) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{cfg: cfg, client: httpClient}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Speak returns mp3 audio for text.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "elevenlabs", "api key required", nil)
	}
	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}
	endpoint := c.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "synthesis", "elevenlabs", "request failed", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "synthesis", "elevenlabs", "read audio", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.WrapHTTPStatus("synthesis", "elevenlabs", resp.StatusCode, string(data), false)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, "synthesis", "elevenlabs", "empty audio", nil)
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		return nil, services.Wrap(services.ErrInvalidResponse, "synthesis", "elevenlabs", "expected audio, got json", nil)
	}
	return data, nil
}

// HealthCheck fetches the configured voice.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "synthesis", "elevenlabs", "api key required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/voices/"+url.PathEscape(c.cfg.VoiceID), nil)
	if err != nil {
		return fmt.Errorf("build voice request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "synthesis", "elevenlabs", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.WrapHTTPStatus("synthesis", "elevenlabs", resp.StatusCode, string(body), false)
	}
	return nil
}
