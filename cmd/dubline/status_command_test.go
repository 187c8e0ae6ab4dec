package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"dubline/internal/api"
	"dubline/internal/deps"
	"dubline/internal/preflight"
)

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	createWorkflow(t, env)

	report := decodeOutput[statusReport](t, mustRunCLI(t, env.configPath, "--json", "status"))
	if report.Workflows != 1 {
		t.Fatalf("workflows = %d, want 1", report.Workflows)
	}
	if report.Store != "sqlite" {
		t.Fatalf("store = %q", report.Store)
	}
	if strings.Join(report.Languages, ",") != "hi,ta" {
		t.Fatalf("languages = %v", report.Languages)
	}
	if len(report.Preflight) == 0 || len(preflight.Failed(report.Preflight)) != 0 {
		t.Fatalf("unexpected preflight: %+v", report.Preflight)
	}
	if len(report.Dependencies) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe, got %+v", report.Dependencies)
	}
	if report.StageHealth != nil {
		t.Fatalf("stage health should only be probed with --stages")
	}
}

func TestStatusText(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env.configPath, "status")
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "0 stored")
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Object store", statusError, "unreachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Object store:", "[ERROR] unreachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Redis", statusOK, "", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Available: true},
		{Name: "FFprobe", Command: "ffprobe", Optional: true, Detail: "not found"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	requireContains(t, lines[0], "[OK] Ready (command: ffmpeg)")
	requireContains(t, lines[1], "[WARN] not found")
	requireContains(t, lines[2], "Missing dependencies:")
}

func TestStageHealthLines(t *testing.T) {
	lines := stageHealthLines([]api.StageHealth{
		{Name: "translation", Ready: true},
		{Name: "lipsync", Ready: false, Detail: "api key required"},
	}, false)
	requireContains(t, lines[0], "[OK] ready")
	requireContains(t, lines[1], "[ERROR] api key required")
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}
