package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubline/internal/config"
	"dubline/internal/state"
)

const userAgent = "dubline/0.1"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyStageCompleted(ctx context.Context, workflowID, stage, detail string) error
	NotifyLipSyncFinished(ctx context.Context, workflowID string, rec state.JobRecord) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		stages:   cfg.Notifications.Stages,
		lipSync:  cfg.Notifications.LipSync,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	stages   bool
	lipSync  bool
	errors   bool
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, workflowID, stage, detail string) error {
	if !n.stages {
		return nil
	}
	message := fmt.Sprintf("%s finished for workflow %s", stage, shortID(workflowID))
	if detail = strings.TrimSpace(detail); detail != "" {
		message += "\n" + detail
	}
	return n.send(ctx, payload{
		title:   "dubline - " + stage,
		message: message,
		tags:    []string{"dubline", stage, "completed"},
	})
}

func (n *ntfyService) NotifyLipSyncFinished(ctx context.Context, workflowID string, rec state.JobRecord) error {
	if !n.lipSync {
		return nil
	}
	data := payload{tags: []string{"dubline", "lipsync", string(rec.State)}}
	switch rec.State {
	case state.JobSucceeded:
		data.title = "dubline - Video Ready"
		data.message = fmt.Sprintf("🎬 %s video ready for workflow %s\n%s", rec.Language.DisplayName(), shortID(workflowID), rec.OutputURL)
		data.priority = "high"
	default:
		data.title = "dubline - Lip-sync " + strings.ReplaceAll(string(rec.State), "_", " ")
		data.message = fmt.Sprintf("%s lip-sync for workflow %s ended %s: %s", rec.Language.DisplayName(), shortID(workflowID), rec.State, rec.Error)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "dubline - Error",
		message:  builder.String(),
		tags:     []string{"dubline", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "dubline - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"dubline", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStageCompleted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyLipSyncFinished(context.Context, string, state.JobRecord) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
