package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/services"
)

func withStageContext(ctx context.Context, workflowID, stageName string, lang language.Code) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if workflowID != "" {
		ctx = services.WithWorkflowID(ctx, workflowID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if lang != "" {
		ctx = services.WithLanguage(ctx, string(lang))
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	return ctx
}

func (o *Orchestrator) stageLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, o.logger)
}

func (o *Orchestrator) stageStarted(ctx context.Context, attrs ...logging.Attr) time.Time {
	attrs = append(attrs, logging.String(logging.FieldEventType, "stage_start"))
	o.stageLogger(ctx).Info("stage started", logging.Args(attrs...)...)
	return time.Now()
}

func (o *Orchestrator) stageCompleted(ctx context.Context, started time.Time, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
	o.stageLogger(ctx).Info("stage completed", logging.Args(attrs...)...)
}

// stageFailed logs a typed stage error and sends the error notification.
// Precondition and validation failures are caller mistakes and only logged
// at debug level.
func (o *Orchestrator) stageFailed(ctx context.Context, stageName string, stageErr error) {
	logger := o.stageLogger(ctx)
	if errors.Is(stageErr, services.ErrPrecondition) || errors.Is(stageErr, services.ErrValidation) {
		logger.Debug("stage rejected", logging.Error(stageErr))
		return
	}
	if errors.Is(stageErr, context.Canceled) {
		logger.Debug("stage interrupted", logging.Error(stageErr))
		return
	}
	details := services.Details(stageErr)
	attrs := logging.ErrorAttrs(stageErr)
	attrs = append(attrs,
		logging.String("error_message", strings.TrimSpace(details.Message)),
		logging.String(logging.FieldEventType, "stage_failure"),
	)
	logger.Error("stage failed", logging.Args(attrs...)...)
	o.notifyError(ctx, stageName, stageErr)
}

func (o *Orchestrator) notifyError(ctx context.Context, stageName string, stageErr error) {
	label := stageName
	if id, ok := services.WorkflowIDFromContext(ctx); ok {
		label = fmt.Sprintf("%s (workflow %s)", stageName, shortID(id))
	}
	if lang, ok := services.LanguageFromContext(ctx); ok {
		label += " " + lang
	}
	if err := o.notifier.NotifyError(ctx, stageErr, label); err != nil {
		o.notificationFailed(ctx, "error", err)
	}
}

func (o *Orchestrator) notifyStageCompleted(ctx context.Context, workflowID, stageName, detail string) {
	if err := o.notifier.NotifyStageCompleted(ctx, workflowID, stageName, detail); err != nil {
		o.notificationFailed(ctx, "stage", err)
	}
}

func (o *Orchestrator) notificationFailed(ctx context.Context, kind string, err error) {
	logger := o.stageLogger(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Debug("shutting down, notification skipped", logging.String("notification", kind))
		return
	}
	logger.Debug("notification failed", logging.String("notification", kind), logging.Error(err))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
