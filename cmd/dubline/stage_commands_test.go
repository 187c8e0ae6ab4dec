package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubline/internal/api"
	"dubline/internal/services"
)

func createWorkflow(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	created := decodeOutput[api.WorkflowResponse](t, mustRunCLI(t, env.configPath, "--json", "workflow", "create"))
	return created.Workflow.ID
}

func TestIngestUploadsLocalFile(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createWorkflow(t, env)

	clip := filepath.Join(env.baseDir, "clip.mp3")
	if err := os.WriteFile(clip, []byte("ID3"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	resp := decodeOutput[api.IngestResponse](t, mustRunCLI(t, env.configPath, "--json", "ingest", id, clip))
	if !strings.HasPrefix(resp.AudioURL, "mem://") {
		t.Fatalf("expected uploaded audio reference, got %q", resp.AudioURL)
	}
	if resp.Key == "" {
		t.Fatal("expected object key for uploaded file")
	}
	if resp.VideoURL != "" {
		t.Fatalf("audio ingest should not record video, got %q", resp.VideoURL)
	}
}

func TestIngestRejectsUnknownExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createWorkflow(t, env)

	_, _, err := runCLI(t, env.configPath, "ingest", id, "https://example.com/notes.txt")
	if !errors.Is(err, services.ErrIngest) {
		t.Fatalf("expected ingest error, got %v", err)
	}
}

func TestManualTranscriptAndTranslations(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createWorkflow(t, env)

	out := mustRunCLI(t, env.configPath, "transcribe", id, "--text", "  Welcome to the show  ")
	requireContains(t, out, "Welcome to the show")

	resp := decodeOutput[api.TranslationsResponse](t, mustRunCLI(t, env.configPath,
		"--json", "translate", id, "--set", "hindi=Namaste", "--set", "ta=Vanakkam"))
	if resp.Translations["hi"] != "Namaste" || resp.Translations["ta"] != "Vanakkam" {
		t.Fatalf("unexpected translations: %+v", resp.Translations)
	}

	show := decodeOutput[api.WorkflowResponse](t, mustRunCLI(t, env.configPath, "--json", "workflow", "show", id))
	if show.Workflow.Phase != "translated" {
		t.Fatalf("phase = %q, want translated", show.Workflow.Phase)
	}
	if show.Workflow.Transcript != "Welcome to the show" {
		t.Fatalf("transcript = %q", show.Workflow.Transcript)
	}

	_, _, err := runCLI(t, env.configPath, "translate", id, "--set", "fr=Bonjour")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unconfigured language, got %v", err)
	}
}

func TestTranscriptFromStdinFile(t *testing.T) {
	got, err := manualText(strings.NewReader("  line one\n"), "", "-")
	if err != nil {
		t.Fatalf("manualText: %v", err)
	}
	if got != "line one" {
		t.Fatalf("got %q", got)
	}
	if _, err := manualText(strings.NewReader(""), "x", "-"); err == nil {
		t.Fatal("expected --text and --file conflict")
	}
	if _, err := manualText(strings.NewReader("   "), "", "-"); err == nil {
		t.Fatal("expected empty transcript to be rejected")
	}
}

func TestSynthesizeRequiresTranslations(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createWorkflow(t, env)

	_, _, err := runCLI(t, env.configPath, "synthesize", id)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "synthesize", id, "--lang", "klingon"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynthesizeStoresSuppliedVoice(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createWorkflow(t, env)
	mustRunCLI(t, env.configPath, "translate", id, "--set", "hi=Namaste")

	track := filepath.Join(env.baseDir, "narration.wav")
	if err := os.WriteFile(track, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "synthesize", id, "--file", track); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without --lang, got %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "synthesize", id, "--file", "https://example.com/talk.mp4", "--lang", "hi"); !errors.Is(err, services.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format for video, got %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "synthesize", id, "--file", track, "--lang", "ta"); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error for untranslated language, got %v", err)
	}

	resp := decodeOutput[api.VoiceResponse](t, mustRunCLI(t, env.configPath, "--json", "synthesize", id, "--file", track, "--lang", "hindi"))
	if resp.Language != "hi" || !strings.HasPrefix(resp.AudioURL, "mem://") || resp.Key == "" {
		t.Fatalf("unexpected voice response %+v", resp)
	}
	show := decodeOutput[api.WorkflowResponse](t, mustRunCLI(t, env.configPath, "--json", "workflow", "show", id))
	if show.Workflow.SynthesizedAudio["hi"] != resp.AudioURL {
		t.Fatalf("voice not stored: %+v", show.Workflow.SynthesizedAudio)
	}
}

func TestLipSyncRequiresVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	id := createWorkflow(t, env)

	_, _, err := runCLI(t, env.configPath, "lipsync", id, "--wait")
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}
