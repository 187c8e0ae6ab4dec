// Package openai wraps github.com/sashabaranov/go-openai for Whisper
// transcription, speech synthesis and JSON-mode chat completions.
// Failures are tagged with services markers.
package openai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"dubline/internal/services"
)

const defaultTimeout = 120 * time.Second

// Config selects the endpoint and models.
type Config struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	SpeechModel        string
	Voice              string
	TimeoutSeconds     int
}

// Client talks to an OpenAI-compatible audio API.
type Client struct {
	api  *gopenai.Client
	cfg  Config
	http *http.Client
}

// New builds a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := defaultTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	apiCfg := gopenai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		apiCfg.BaseURL = base
	}
	apiCfg.HTTPClient = httpClient
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = gopenai.Whisper1
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(gopenai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(gopenai.VoiceNova)
	}
	return &Client{api: gopenai.NewClientWithConfig(apiCfg), cfg: cfg, http: httpClient}
}

// Transcribe sends audio to Whisper and returns the plain transcript.
// filename must carry the original extension; the API uses it to detect
// the container format.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte, lang string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, "transcription", "whisper", "api key required", nil)
	}
	resp, err := c.api.CreateTranscription(ctx, gopenai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Format:   gopenai.AudioResponseFormatJSON,
		Language: lang,
	})
	if err != nil {
		return "", classify("whisper", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", services.Wrap(services.ErrInvalidResponse, "transcription", "whisper", "empty transcript", nil)
	}
	return text, nil
}

// Speak renders text as mp3 audio.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "speech", "api key required", nil)
	}
	resp, err := c.api.CreateSpeech(ctx, gopenai.CreateSpeechRequest{
		Model:          gopenai.SpeechModel(c.cfg.SpeechModel),
		Input:          text,
		Voice:          gopenai.SpeechVoice(c.cfg.Voice),
		ResponseFormat: gopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classify("speech", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "synthesis", "speech", "read audio", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, "synthesis", "speech", "empty audio", nil)
	}
	return data, nil
}

// CompleteJSON runs a JSON-mode chat completion and returns the content.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, "translation", "chat", "api key required", nil)
	}
	model := c.cfg.ChatModel
	if model == "" {
		model = gopenai.GPT4oMini
	}
	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model: model,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: gopenai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &gopenai.ChatCompletionResponseFormat{Type: gopenai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", classify("chat", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", services.Wrap(services.ErrInvalidResponse, "translation", "chat", "empty completion", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck lists models to confirm the key is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "openai", "health", "api key required", nil)
	}
	if _, err := c.api.ListModels(ctx); err != nil {
		return classify("health", err)
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransport, "openai", op, "request interrupted", err)
	}
	status := 0
	var apiErr *gopenai.APIError
	var reqErr *gopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == 0:
		return services.Wrap(services.ErrTransport, "openai", op, "request failed", err)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrQuota, "openai", op, "rate limited", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "openai", op, "credentials rejected", err)
	case status == http.StatusBadRequest || status == http.StatusUnsupportedMediaType:
		if strings.Contains(strings.ToLower(err.Error()), "format") {
			return services.Wrap(services.ErrUnsupportedFormat, "openai", op, "audio format rejected", err)
		}
		return services.Wrap(services.ErrInvalidResponse, "openai", op, "request rejected", err)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransport, "openai", op, "service unavailable", err)
	default:
		return services.Wrap(services.ErrInvalidResponse, "openai", op, "unexpected status", err)
	}
}
