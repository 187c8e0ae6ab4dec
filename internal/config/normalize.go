package config

import (
	"fmt"
	"os"
	"strings"

	"dubline/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLanguages(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeStorage()
	c.normalizeTranscription()
	c.normalizeTranslation()
	c.normalizeSynthesis()
	c.normalizeLipSync()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLanguages() error {
	if code := language.ToISO2(c.Languages.Source); code != "" {
		c.Languages.Source = code
	} else {
		c.Languages.Source = defaultSourceLanguage
	}
	set, err := language.ParseSet(c.Languages.Targets)
	if err != nil {
		return fmt.Errorf("languages.targets: %w", err)
	}
	c.Languages.Targets = set.Strings()
	return nil
}

func (c *Config) normalizeIngest() {
	c.Ingest.FFmpegBinary = strings.TrimSpace(c.Ingest.FFmpegBinary)
	if c.Ingest.FFmpegBinary == "" {
		c.Ingest.FFmpegBinary = defaultFFmpegBinary
	}
	c.Ingest.FFprobeBinary = strings.TrimSpace(c.Ingest.FFprobeBinary)
	if c.Ingest.FFprobeBinary == "" {
		c.Ingest.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	if c.Storage.Provider == "" {
		c.Storage.Provider = defaultStorageProvider
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = strings.TrimSpace(os.Getenv("R2_ENDPOINT"))
	}
	// minio-go wants a bare host.
	c.Storage.Endpoint = strings.TrimPrefix(strings.TrimPrefix(c.Storage.Endpoint, "https://"), "http://")
	c.Storage.Endpoint = strings.TrimSuffix(c.Storage.Endpoint, "/")
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = strings.TrimSpace(os.Getenv("R2_BUCKET_NAME"))
	}
	c.Storage.AccessKeyID = envFallback(c.Storage.AccessKeyID, "R2_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	c.Storage.SecretAccessKey = envFallback(c.Storage.SecretAccessKey, "R2_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	c.Storage.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.KeyPrefix = strings.Trim(strings.TrimSpace(c.Storage.KeyPrefix), "/")
	if strings.TrimSpace(c.Storage.Region) == "" {
		c.Storage.Region = defaultStorageRegion
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = envFallback(c.Transcription.APIKey, "OPENAI_API_KEY")
	c.Transcription.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.Provider = strings.ToLower(strings.TrimSpace(c.Translation.Provider))
	if c.Translation.Provider == "" {
		c.Translation.Provider = defaultTranslationProvider
	}
	if c.Translation.Provider == "openai" {
		c.Translation.APIKey = envFallback(c.Translation.APIKey, "OPENAI_API_KEY")
	} else {
		c.Translation.APIKey = envFallback(c.Translation.APIKey, "LLM_API_KEY", "OPENROUTER_API_KEY", "CLAUDE_API_KEY")
	}
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	c.Translation.Referer = strings.TrimSpace(c.Translation.Referer)
	c.Translation.Title = strings.TrimSpace(c.Translation.Title)
	c.Translation.Audience = strings.TrimSpace(c.Translation.Audience)
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Provider = strings.ToLower(strings.TrimSpace(c.Synthesis.Provider))
	if c.Synthesis.Provider == "" {
		c.Synthesis.Provider = defaultSynthesisProvider
	}
	switch c.Synthesis.Provider {
	case "openai":
		c.Synthesis.APIKey = envFallback(c.Synthesis.APIKey, "OPENAI_API_KEY")
	default:
		c.Synthesis.APIKey = envFallback(c.Synthesis.APIKey, "ELEVENLABS_API_KEY")
	}
	c.Synthesis.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Synthesis.BaseURL), "/")
	c.Synthesis.VoiceID = strings.TrimSpace(c.Synthesis.VoiceID)
	c.Synthesis.ModelID = strings.TrimSpace(c.Synthesis.ModelID)
	c.Synthesis.OpenAIVoice = strings.ToLower(strings.TrimSpace(c.Synthesis.OpenAIVoice))
	if c.Synthesis.OpenAIVoice == "" {
		c.Synthesis.OpenAIVoice = defaultOpenAIVoice
	}
}

func (c *Config) normalizeLipSync() {
	c.LipSync.APIKey = envFallback(c.LipSync.APIKey, "LIPSYNC_API_KEY", "WAV2LIP_API_KEY", "SYNC_API_KEY")
	c.LipSync.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.LipSync.BaseURL), "/")
	if c.LipSync.BaseURL == "" {
		c.LipSync.BaseURL = defaultLipSyncBaseURL
	}
	c.LipSync.SyncMode = strings.TrimSpace(c.LipSync.SyncMode)
	if c.LipSync.SyncMode == "" {
		c.LipSync.SyncMode = defaultLipSyncMode
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.Store = strings.ToLower(strings.TrimSpace(c.Workflow.Store))
	if c.Workflow.Store == "" {
		c.Workflow.Store = defaultWorkflowStore
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.Password == "" {
		c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if strings.TrimSpace(c.Redis.Key) == "" {
		c.Redis.Key = defaultRedisKey
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envFallback(value string, keys ...string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	for _, key := range keys {
		if env, ok := os.LookupEnv(key); ok && strings.TrimSpace(env) != "" {
			return strings.TrimSpace(env)
		}
	}
	return ""
}
