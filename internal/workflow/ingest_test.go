package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"dubline/internal/services"
	"dubline/internal/state"
)

func TestInferKind(t *testing.T) {
	cases := map[string]SourceKind{
		"mem://clip.MP4":                      SourceVideo,
		"https://host/path/clip.mov?sig=abc":  SourceVideo,
		"s3://bucket/20240101_000000_x_a.avi": SourceVideo,
		"voice.mp3":                           SourceAudio,
		"https://host/voice.m4a#t=10":         SourceAudio,
		"mem://voice.wav":                     SourceAudio,
	}
	for ref, want := range cases {
		got, ok := InferKind(ref)
		if !ok || got != want {
			t.Fatalf("InferKind(%q) = %q, %v; want %q", ref, got, ok, want)
		}
	}
	if _, ok := InferKind("notes.txt"); ok {
		t.Fatal("expected txt to be rejected")
	}
}

func TestIngestRejectsUnusableReferences(t *testing.T) {
	h := newHarness(t, []string{"hi"})
	id := h.create(t)
	for _, src := range []IngestSource{{URL: " "}, {URL: "notes.txt"}, {URL: "clip.mp4", Kind: "image"}} {
		if _, err := h.orch.Ingest(context.Background(), id, src); !errors.Is(err, services.ErrIngest) {
			t.Fatalf("expected ingest error for %+v, got %v", src, err)
		}
	}
}

func TestIngestExtractionFailureUsesFallback(t *testing.T) {
	h := newHarness(t, []string{"hi"})
	h.extractor.extractErr = errors.New("ffmpeg exited 1")
	id := h.create(t)

	result, err := h.orch.Ingest(context.Background(), id, IngestSource{URL: "mem://clip.mp4"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Degraded || result.Duration != 30*time.Second || result.AudioURL != "" {
		t.Fatalf("unexpected degraded result %+v", result)
	}
	ws := h.status(t, id)
	if !ws.DurationDefaulted || ws.VideoDuration != 30*time.Second || ws.VideoURL != "mem://clip.mp4" {
		t.Fatalf("unexpected stored state %+v", ws)
	}
}

func TestIngestExtractionFailureWithoutFallback(t *testing.T) {
	h := newHarness(t, []string{"hi"}, withFallback(false))
	h.extractor.extractErr = errors.New("ffmpeg exited 1")
	id := h.create(t)

	if _, err := h.orch.Ingest(context.Background(), id, IngestSource{URL: "mem://clip.mp4"}); !errors.Is(err, services.ErrIngest) {
		t.Fatalf("expected ingest error, got %v", err)
	}
	if ws := h.status(t, id); ws.VideoURL != "" {
		t.Fatal("failed ingest should not record the source")
	}
}

func TestIngestAudioProbes(t *testing.T) {
	h := newHarness(t, []string{"hi"})
	h.extractor.probe = 12 * time.Second
	id := h.create(t)

	result, err := h.orch.Ingest(context.Background(), id, IngestSource{URL: "mem://voice.mp3"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.VideoURL != "" || result.AudioURL != "mem://voice.mp3" || result.Duration != 12*time.Second {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestIngestWithoutExtractorDegrades(t *testing.T) {
	h := newHarness(t, []string{"hi"}, withoutExtractor())
	id := h.create(t)
	result, err := h.orch.Ingest(context.Background(), id, IngestSource{URL: "mem://voice.wav"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Degraded || result.AudioURL != "mem://voice.wav" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestIngestResetsDownstream(t *testing.T) {
	h := newHarness(t, []string{"hi"})
	id := h.create(t)
	h.seed(t, id, func(ws *state.WorkflowState) {
		ws.Transcript = "old"
		ws.Translations["hi"] = "पुराना"
		ws.SynthesizedAudio["hi"] = "mem://old.mp3"
		ws.LipSyncJobs["hi"] = state.NewFailedJob("hi", "old", time.Now())
	})

	if _, err := h.orch.Ingest(context.Background(), id, IngestSource{URL: "mem://new.mp4"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	ws := h.status(t, id)
	if ws.Transcript != "" || len(ws.Translations) != 0 || len(ws.SynthesizedAudio) != 0 || len(ws.LipSyncJobs) != 0 {
		t.Fatalf("downstream artifacts survived re-ingest: %+v", ws)
	}
	if ws.AudioURL != "mem://source_audio.mp3" || ws.DurationDefaulted {
		t.Fatalf("unexpected ingest fields %+v", ws)
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[time.Duration]string{
		0:                 "00:00",
		45 * time.Second:  "00:45",
		125 * time.Second: "02:05",
		-time.Second:      "00:00",
	}
	for in, want := range cases {
		if got := FormatClock(in); got != want {
			t.Fatalf("FormatClock(%s) = %q, want %q", in, got, want)
		}
	}
}
