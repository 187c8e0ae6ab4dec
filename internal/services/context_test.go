package services_test

import (
	"context"
	"testing"

	"dubline/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkflowID(ctx, "wf-1")
	ctx = services.WithStage(ctx, "synthesize")
	ctx = services.WithLanguage(ctx, "hi")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.WorkflowIDFromContext(ctx); !ok || id != "wf-1" {
		t.Fatalf("unexpected workflow id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "synthesize" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if lang, ok := services.LanguageFromContext(ctx); !ok || lang != "hi" {
		t.Fatalf("unexpected language: %v %v", lang, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithWorkflowID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected blank stage to be ignored")
	}
	if _, ok := services.WorkflowIDFromContext(ctx); ok {
		t.Fatal("expected blank workflow id to be ignored")
	}
}
