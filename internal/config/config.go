package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dubline/internal/language"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Languages lists the source language and the configured target set.
type Languages struct {
	Source  string   `toml:"source"`
	Targets []string `toml:"targets"`
}

// Ingest controls audio extraction and the duration fallback policy.
type Ingest struct {
	DefaultDurationSeconds   int    `toml:"default_duration_seconds"`
	FallbackOnExtractFailure bool   `toml:"fallback_on_extract_failure"`
	ExtractTimeoutSeconds    int    `toml:"extract_timeout_seconds"`
	FFmpegBinary             string `toml:"ffmpeg_binary"`
	FFprobeBinary            string `toml:"ffprobe_binary"`
}

// Storage configures the S3-compatible object store (Cloudflare R2, MinIO, AWS).
type Storage struct {
	Provider          string `toml:"provider"`
	Endpoint          string `toml:"endpoint"`
	Region            string `toml:"region"`
	Bucket            string `toml:"bucket"`
	AccessKeyID       string `toml:"access_key_id"`
	SecretAccessKey   string `toml:"secret_access_key"`
	UseSSL            bool   `toml:"use_ssl"`
	PublicBaseURL     string `toml:"public_base_url"`
	KeyPrefix         string `toml:"key_prefix"`
	PresignTTLSeconds int    `toml:"presign_ttl_seconds"`
}

// Transcription configures the speech-to-text service.
type Transcription struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation configures the machine translation service.
type Translation struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	Audience       string `toml:"audience"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Synthesis configures text-to-speech.
type Synthesis struct {
	Provider        string  `toml:"provider"`
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	VoiceID         string  `toml:"voice_id"`
	ModelID         string  `toml:"model_id"`
	Stability       float64 `toml:"stability"`
	SimilarityBoost float64 `toml:"similarity_boost"`
	OpenAIVoice     string  `toml:"openai_voice"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// LipSync configures the lip-sync generation service.
type LipSync struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	SyncMode       string `toml:"sync_mode"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Poller bounds lip-sync job polling.
type Poller struct {
	BaseDelaySeconds int  `toml:"base_delay_seconds"`
	MaxDelaySeconds  int  `toml:"max_delay_seconds"`
	MaxAttempts      int  `toml:"max_attempts"`
	TimeoutSeconds   int  `toml:"timeout_seconds"`
	AutoPoll         bool `toml:"auto_poll"`
	// ResumeIntervalSeconds is how often the daemon sweeps the store for
	// pending jobs it is not polling yet. Zero sweeps only at startup.
	ResumeIntervalSeconds int `toml:"resume_interval_seconds"`
}

// Workflow contains orchestration settings.
type Workflow struct {
	MaxConcurrency int    `toml:"max_concurrency"`
	Store          string `toml:"store"`
}

// Redis configures the optional redis-backed workflow store.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Stages         bool   `toml:"stages"`
	LipSync        bool   `toml:"lipsync"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dubline.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Languages     Languages     `toml:"languages"`
	Ingest        Ingest        `toml:"ingest"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	LipSync       LipSync       `toml:"lipsync"`
	Poller        Poller        `toml:"poller"`
	Workflow      Workflow      `toml:"workflow"`
	Redis         Redis         `toml:"redis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite workflow database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "dubline.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "dubline.lock")
}

// TargetLanguages returns the configured target language set.
// Validate guarantees the values parse.
func (c *Config) TargetLanguages() language.Set {
	set, err := language.ParseSet(c.Languages.Targets)
	if err != nil {
		return language.Set{}
	}
	return set
}

// DefaultDuration is the duration recorded when extraction cannot measure one.
func (c *Config) DefaultDuration() time.Duration {
	return seconds(c.Ingest.DefaultDurationSeconds)
}

// PresignTTL returns the lifetime of presigned download URLs.
func (c *Config) PresignTTL() time.Duration {
	return seconds(c.Storage.PresignTTLSeconds)
}

// ResumeInterval returns the pending-job sweep period; zero disables it.
func (c *Config) ResumeInterval() time.Duration {
	return seconds(c.Poller.ResumeIntervalSeconds)
}

// PollerSettings returns the poller bounds as durations.
func (c *Config) PollerSettings() (base, maxDelay, timeout time.Duration, attempts int) {
	return seconds(c.Poller.BaseDelaySeconds), seconds(c.Poller.MaxDelaySeconds), seconds(c.Poller.TimeoutSeconds), c.Poller.MaxAttempts
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
