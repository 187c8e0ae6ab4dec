package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"dubline/internal/language"
	"dubline/internal/services"
	"dubline/internal/state"
	"dubline/internal/workflow"
)

func TestFromWorkflowState(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ws := state.NewWorkflowState("wf-1", now)
	ws.VideoURL = "mem://talk.mp4"
	ws.VideoDuration = 95 * time.Second
	ws.Translations["hi"] = "नमस्ते"
	ws.SynthesizedAudio["hi"] = "mem://hi_audio.mp3"
	ws.LipSyncJobs["hi"] = state.NewSubmittedJob("hi", "job-1", now)

	dto := FromWorkflowState(ws)
	if dto.Duration != "01:35" || dto.DurationSeconds != 95 {
		t.Fatalf("unexpected duration %q / %v", dto.Duration, dto.DurationSeconds)
	}
	if dto.Phase != "lipsync_running" {
		t.Fatalf("unexpected phase %q", dto.Phase)
	}
	job := dto.LipSyncJobs["hi"]
	if job.LanguageName != "Hindi" || job.State != "submitted" || job.JobID != "job-1" {
		t.Fatalf("unexpected job %+v", job)
	}
	if dto.CreatedAt != "2024-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", dto.CreatedAt)
	}

	list := FromWorkflowStates([]state.WorkflowState{ws})
	if len(list) != 1 || list[0].PendingJobs != 1 || list[0].Languages != 1 {
		t.Fatalf("unexpected summary %+v", list)
	}
}

func TestFromSynthesisReport(t *testing.T) {
	report := workflow.SynthesisReport{
		Results: map[language.Code]workflow.SynthesisResult{
			"hi": {AudioURL: "mem://hi.mp3"},
			"ta": {Error: "quota exceeded"},
		},
		Skipped: map[language.Code]string{"gu": "no translation available"},
	}
	dto := FromSynthesisReport(report)
	if dto.Failed != 1 || dto.Results["hi"].AudioURL != "mem://hi.mp3" || dto.Skipped["gu"] == "" {
		t.Fatalf("unexpected response %+v", dto)
	}
}

func TestParseLanguages(t *testing.T) {
	codes, err := ParseLanguages([]string{"Hindi", "hi", " ", "ta"})
	if err != nil {
		t.Fatalf("ParseLanguages: %v", err)
	}
	if len(codes) != 2 || codes[0] != "hi" || codes[1] != "ta" {
		t.Fatalf("unexpected codes %v", codes)
	}
	if _, err := ParseLanguages([]string{"klingon"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", services.Wrap(services.ErrNotFound, "workflow", "load", "", nil), http.StatusNotFound},
		{"precondition", services.Wrap(services.ErrPrecondition, "transcribe", "check", "", nil), http.StatusConflict},
		{"validation", services.Wrap(services.ErrValidation, "api", "decode", "", nil), http.StatusBadRequest},
		{"ingest", services.Wrap(services.ErrIngest, "ingest", "validate", "", nil), http.StatusBadRequest},
		{"upstream", services.Wrap(services.ErrTranscription, "transcription", "request", "",
			services.Wrap(services.ErrTransport, "openai", "request", "", nil)), http.StatusBadGateway},
		{"invalid", services.Wrap(services.ErrTranslation, "translate", "", "",
			services.Wrap(services.ErrInvalidResponse, "translate", "", "", nil)), http.StatusBadGateway},
		{"timeout", services.Wrap(services.ErrJobTimeout, "lipsync", "poll", "", nil), http.StatusGatewayTimeout},
		{"plain", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	err := services.WrapLanguage(services.ErrSynthesis, "synthesize", "hi", "speak", "voice failed", errors.New("503"))
	body := FromError(err)
	if body.Kind != "synthesis" || body.Stage != "synthesize" || body.Language != "hi" || body.Error != "voice failed" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Hint == "" {
		t.Fatal("expected default hint")
	}
}
