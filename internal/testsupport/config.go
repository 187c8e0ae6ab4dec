package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dubline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage defaults to the in-memory provider and polling to millisecond delays.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.Provider = "memory"
	cfgVal.Transcription.APIKey = "test-openai"
	cfgVal.Translation.APIKey = "test-llm"
	cfgVal.Synthesis.APIKey = "test-tts"
	cfgVal.LipSync.APIKey = "test-lipsync"

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithLanguages overrides the configured target languages.
func WithLanguages(codes ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Languages.Targets = append([]string(nil), codes...)
	}
}

// WithPoller sets poller bounds in seconds.
func WithPoller(baseDelay, maxDelay, maxAttempts, timeout int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poller.BaseDelaySeconds = baseDelay
		b.cfg.Poller.MaxDelaySeconds = maxDelay
		b.cfg.Poller.MaxAttempts = maxAttempts
		b.cfg.Poller.TimeoutSeconds = timeout
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
