package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"dubline/internal/config"
	"dubline/internal/deps"
	"dubline/internal/logging"
	"dubline/internal/media/ffprobe"
	"dubline/internal/objectstore"
	"dubline/internal/services"
	"dubline/internal/stage"
)

// Extractor implements stage.AudioExtractor with ffmpeg and ffprobe.
type Extractor struct {
	store   objectstore.Store
	http    services.HTTPDoer
	ffmpeg  string
	ffprobe string
	workDir string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ stage.AudioExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor from the [ingest] and [paths] sections.
func NewExtractor(cfg *config.Config, store objectstore.Store, httpClient services.HTTPDoer, logger *slog.Logger) *Extractor {
	timeout := time.Duration(cfg.Ingest.ExtractTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Extractor{
		store:   store,
		http:    httpClient,
		ffmpeg:  orDefault(cfg.Ingest.FFmpegBinary, "ffmpeg"),
		ffprobe: orDefault(cfg.Ingest.FFprobeBinary, "ffprobe"),
		workDir: cfg.Paths.WorkDir,
		timeout: timeout,
		now:     time.Now,
		logger:  logging.NewComponentLogger(logger, "media"),
	}
}

// Extract downloads the video, writes its first audio track as mp3, uploads
// it and reports the video duration.
func (e *Extractor) Extract(ctx context.Context, videoURL string) (stage.Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	scratch, input, err := e.download(ctx, videoURL)
	if err != nil {
		return stage.Extraction{}, err
	}
	defer os.RemoveAll(scratch)

	probe, err := ffprobe.Inspect(ctx, e.ffprobe, input)
	if err != nil {
		return stage.Extraction{}, services.Wrap(services.ErrIngest, "ingest", "probe", "ffprobe failed", err)
	}
	if probe.AudioStreamCount() == 0 {
		return stage.Extraction{}, services.Wrap(services.ErrUnsupportedFormat, "ingest", "probe", "video has no audio track", nil)
	}

	output := filepath.Join(scratch, "audio.mp3")
	cmd := exec.CommandContext(ctx, e.ffmpeg, "-hide_banner", "-loglevel", "error", "-y",
		"-i", input, "-vn", "-map", "0:a:0", "-acodec", "libmp3lame", "-q:a", "2", output)
	if out, err := cmd.CombinedOutput(); err != nil {
		return stage.Extraction{}, services.Wrap(services.ErrIngest, "ingest", "extract",
			strings.TrimSpace(string(out)), err)
	}
	audio, err := os.ReadFile(output)
	if err != nil || len(audio) == 0 {
		return stage.Extraction{}, services.Wrap(services.ErrIngest, "ingest", "extract", "ffmpeg produced no audio", err)
	}

	base := strings.TrimSuffix(path.Base(input), path.Ext(input))
	key := objectstore.NewKey(base+"_audio.mp3", e.now())
	uri, err := e.store.Put(ctx, audio, key, "audio/mpeg")
	if err != nil {
		return stage.Extraction{}, err
	}
	duration := probe.Duration()
	e.logger.InfoContext(ctx, "extracted audio",
		logging.String("key", key),
		logging.Duration("duration", duration),
		logging.Int("bytes", len(audio)),
	)
	return stage.Extraction{AudioURL: uri, Duration: duration}, nil
}

// Probe measures the duration of any stored or remote media.
func (e *Extractor) Probe(ctx context.Context, mediaURL string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	scratch, input, err := e.download(ctx, mediaURL)
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(scratch)

	probe, err := ffprobe.Inspect(ctx, e.ffprobe, input)
	if err != nil {
		return 0, services.Wrap(services.ErrIngest, "ingest", "probe", "ffprobe failed", err)
	}
	duration := probe.Duration()
	if duration <= 0 {
		return 0, services.Wrap(services.ErrIngest, "ingest", "probe", "duration unavailable", nil)
	}
	return duration, nil
}

func (e *Extractor) HealthCheck(context.Context) stage.Health {
	missing := deps.Missing(deps.CheckBinaries(deps.MediaRequirements(e.ffmpeg, e.ffprobe)))
	if len(missing) > 0 {
		return stage.Unhealthy("media", strings.Join(missing, "; "))
	}
	return stage.Healthy("media")
}

func (e *Extractor) download(ctx context.Context, ref string) (string, string, error) {
	data, err := objectstore.Fetch(ctx, e.store, e.http, ref)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create work dir: %w", err)
	}
	scratch, err := os.MkdirTemp(e.workDir, "ingest-")
	if err != nil {
		return "", "", fmt.Errorf("create scratch dir: %w", err)
	}
	name := filepath.Base(filepath.FromSlash(stripQuery(ref)))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "input"
	}
	input := filepath.Join(scratch, name)
	if err := os.WriteFile(input, data, 0o644); err != nil {
		_ = os.RemoveAll(scratch)
		return "", "", fmt.Errorf("write scratch input: %w", err)
	}
	return scratch, input, nil
}

func stripQuery(ref string) string {
	if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		return ref[:idx]
	}
	return ref
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
