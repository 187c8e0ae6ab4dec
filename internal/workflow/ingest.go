package workflow

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"dubline/internal/logging"
	"dubline/internal/services"
	"dubline/internal/state"
)

// SourceKind says whether an ingested reference is a video or bare audio.
type SourceKind string

const (
	SourceVideo SourceKind = "video"
	SourceAudio SourceKind = "audio"
)

var (
	videoExtensions = []string{".mp4", ".avi", ".mov"}
	audioExtensions = []string{".mp3", ".wav", ".m4a"}
)

// IngestSource names the media to ingest. Kind is inferred from the URL
// extension when empty.
type IngestSource struct {
	URL  string     `json:"url"`
	Kind SourceKind `json:"kind,omitempty"`
}

// IngestResult reports what ingest recorded. Degraded is set when the
// configured default duration was used instead of a measured one.
type IngestResult struct {
	VideoURL string        `json:"video_url,omitempty"`
	AudioURL string        `json:"audio_url,omitempty"`
	Duration time.Duration `json:"duration"`
	Degraded bool          `json:"degraded"`
	Reason   string        `json:"reason,omitempty"`
}

// InferKind classifies a reference by extension. ok is false for anything
// outside the supported video and audio extensions.
func InferKind(ref string) (SourceKind, bool) {
	name := ref
	if parsed, err := url.Parse(ref); err == nil && parsed.Path != "" {
		name = parsed.Path
	}
	ext := strings.ToLower(path.Ext(name))
	for _, candidate := range videoExtensions {
		if ext == candidate {
			return SourceVideo, true
		}
	}
	for _, candidate := range audioExtensions {
		if ext == candidate {
			return SourceAudio, true
		}
	}
	return "", false
}

// Ingest records a new source for the session. Downstream artifacts and
// running poll loops belong to the previous source and are cleared.
func (o *Orchestrator) Ingest(ctx context.Context, id string, src IngestSource) (IngestResult, error) {
	ctx = withStageContext(ctx, id, StageIngest, "")
	if _, err := o.load(ctx, id); err != nil {
		return IngestResult{}, err
	}
	ref := strings.TrimSpace(src.URL)
	if ref == "" {
		return IngestResult{}, services.Wrap(services.ErrIngest, StageIngest, "validate", "no media reference provided", nil)
	}
	kind := src.Kind
	if kind == "" {
		inferred, ok := InferKind(ref)
		if !ok {
			return IngestResult{}, services.Wrap(services.ErrIngest, StageIngest, "validate",
				fmt.Sprintf("cannot tell video from audio for %q", path.Base(ref)), services.ErrUnsupportedFormat)
		}
		kind = inferred
	}
	if kind != SourceVideo && kind != SourceAudio {
		return IngestResult{}, services.Wrap(services.ErrIngest, StageIngest, "validate", fmt.Sprintf("unknown source kind %q", kind), nil)
	}

	unlock := o.locks.Lock(lockKey(id, StageIngest, ""))
	defer unlock()

	started := o.stageStarted(ctx, logging.String("source_kind", string(kind)), logging.String("source", ref))
	var (
		result IngestResult
		err    error
	)
	if kind == SourceVideo {
		result, err = o.ingestVideo(ctx, ref)
	} else {
		result, err = o.ingestAudio(ctx, ref)
	}
	if err != nil {
		o.stageFailed(ctx, StageIngest, err)
		return IngestResult{}, err
	}

	o.cancelLoops(id)
	_, err = o.update(ctx, id, func(ws *state.WorkflowState) error {
		ws.VideoURL = result.VideoURL
		ws.AudioURL = result.AudioURL
		ws.VideoDuration = result.Duration
		ws.DurationDefaulted = result.Degraded
		ws.ResetDownstream()
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	o.stageCompleted(ctx, started,
		logging.Duration("media_duration", result.Duration),
		logging.Bool("degraded", result.Degraded),
	)
	o.notifyStageCompleted(ctx, id, StageIngest, fmt.Sprintf("duration %s", FormatClock(result.Duration)))
	return result, nil
}

func (o *Orchestrator) ingestVideo(ctx context.Context, ref string) (IngestResult, error) {
	result := IngestResult{VideoURL: ref}
	if o.deps.Extractor == nil {
		return o.degrade(ctx, result, "no audio extractor configured", nil)
	}
	extraction, err := o.deps.Extractor.Extract(ctx, ref)
	if err != nil {
		return o.degrade(ctx, result, "audio extraction failed", err)
	}
	result.AudioURL = extraction.AudioURL
	result.Duration = extraction.Duration
	if result.Duration <= 0 {
		return o.degrade(ctx, result, "extracted audio has no duration", nil)
	}
	return result, nil
}

func (o *Orchestrator) ingestAudio(ctx context.Context, ref string) (IngestResult, error) {
	result := IngestResult{AudioURL: ref}
	if o.deps.Extractor == nil {
		return o.degrade(ctx, result, "no audio prober configured", nil)
	}
	duration, err := o.deps.Extractor.Probe(ctx, ref)
	if err != nil {
		return o.degrade(ctx, result, "audio probe failed", err)
	}
	result.Duration = duration
	return result, nil
}

// degrade applies the fallback duration policy. Audio already recorded in
// result is kept; a video whose extraction failed has none.
func (o *Orchestrator) degrade(ctx context.Context, result IngestResult, reason string, cause error) (IngestResult, error) {
	if !o.fallback {
		return IngestResult{}, services.Wrap(services.ErrIngest, StageIngest, "measure", reason, cause)
	}
	if cause != nil {
		reason = fmt.Sprintf("%s: %v", reason, cause)
	}
	result.Duration = o.defaultDuration
	result.Degraded = true
	result.Reason = reason
	logging.WarnWithContext(o.stageLogger(ctx), "ingest degraded; using default duration", "ingest_degraded",
		logging.String("reason", reason),
		logging.Duration("default_duration", o.defaultDuration),
		logging.String(logging.FieldErrorHint, "check ffmpeg/ffprobe availability and the uploaded media"),
		logging.String(logging.FieldImpact, "translations are timed against the default duration"),
	)
	return result, nil
}

// FormatClock renders whole seconds as mm:ss.
func FormatClock(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
