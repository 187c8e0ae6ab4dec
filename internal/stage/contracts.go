package stage

import (
	"context"
	"time"

	"dubline/internal/language"
)

// TranscriptionRequest names the audio to transcribe.
type TranscriptionRequest struct {
	AudioURL string
	Language language.Code
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
	HealthCheck(ctx context.Context) Health
}

// TranslationRequest carries the transcript and the languages it must be
// translated into.
type TranslationRequest struct {
	Text      string
	Duration  time.Duration
	Languages language.Set
}

// Translator returns one translation per requested language. Implementations
// must return exactly the requested key set or an error.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (map[language.Code]string, error)
	HealthCheck(ctx context.Context) Health
}

// SynthesisRequest is one language's text to voice.
type SynthesisRequest struct {
	WorkflowID string
	Language   language.Code
	Text       string
}

// Synthesizer voices a translation and returns the stored audio URI.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (string, error)
	HealthCheck(ctx context.Context) Health
}

// LipSyncRequest pairs the source video with one language's audio.
type LipSyncRequest struct {
	VideoURL string
	AudioURL string
	Language language.Code
}

// JobHandle identifies an accepted asynchronous job.
type JobHandle struct {
	JobID string
}

// PollStatus is the normalized state reported by a lip-sync service.
type PollStatus string

const (
	PollRunning   PollStatus = "running"
	PollSucceeded PollStatus = "succeeded"
	PollFailed    PollStatus = "failed"
)

// PollResult is one status observation. OutputURL is set only on success,
// Reason only on failure.
type PollResult struct {
	Status    PollStatus
	OutputURL string
	Reason    string
}

// LipSyncer submits jobs and reports their progress.
type LipSyncer interface {
	Submit(ctx context.Context, req LipSyncRequest) (JobHandle, error)
	PollOnce(ctx context.Context, jobID string) (PollResult, error)
	HealthCheck(ctx context.Context) Health
}

// Extraction is the audio pulled out of a video.
type Extraction struct {
	AudioURL string
	Duration time.Duration
}

// AudioExtractor separates the audio track from a video and measures media.
type AudioExtractor interface {
	Extract(ctx context.Context, videoURL string) (Extraction, error)
	Probe(ctx context.Context, mediaURL string) (time.Duration, error)
	HealthCheck(ctx context.Context) Health
}
