package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
// Credentials are not required here; service clients report a missing key
// when they are first used so config inspection works without secrets.
func (c *Config) Validate() error {
	if err := c.validateLanguages(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateLanguages() error {
	if len(c.Languages.Targets) == 0 {
		return errors.New("languages.targets must list at least one language")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.DefaultDurationSeconds <= 0 {
		return errors.New("ingest.default_duration_seconds must be positive")
	}
	if c.Ingest.ExtractTimeoutSeconds < 0 {
		return errors.New("ingest.extract_timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "memory":
		return nil
	case "s3":
	default:
		return fmt.Errorf("storage.provider: unsupported value %q (want s3 or memory)", c.Storage.Provider)
	}
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint is required for the s3 provider (or set R2_ENDPOINT)")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required for the s3 provider (or set R2_BUCKET_NAME)")
	}
	if c.Storage.PresignTTLSeconds <= 0 {
		return errors.New("storage.presign_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateProviders() error {
	switch c.Translation.Provider {
	case "openrouter", "openai":
	default:
		return fmt.Errorf("translation.provider: unsupported value %q (want openrouter or openai)", c.Translation.Provider)
	}
	switch c.Synthesis.Provider {
	case "elevenlabs", "openai":
	default:
		return fmt.Errorf("synthesis.provider: unsupported value %q (want elevenlabs or openai)", c.Synthesis.Provider)
	}
	if c.Synthesis.Stability < 0 || c.Synthesis.Stability > 1 {
		return errors.New("synthesis.stability must be between 0 and 1")
	}
	if c.Synthesis.SimilarityBoost < 0 || c.Synthesis.SimilarityBoost > 1 {
		return errors.New("synthesis.similarity_boost must be between 0 and 1")
	}
	for name, value := range map[string]int{
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
		"translation.timeout_seconds":   c.Translation.TimeoutSeconds,
		"synthesis.timeout_seconds":     c.Synthesis.TimeoutSeconds,
		"lipsync.timeout_seconds":       c.LipSync.TimeoutSeconds,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	return nil
}

func (c *Config) validatePoller() error {
	if c.Poller.BaseDelaySeconds <= 0 {
		return errors.New("poller.base_delay_seconds must be positive")
	}
	if c.Poller.MaxDelaySeconds < c.Poller.BaseDelaySeconds {
		return errors.New("poller.max_delay_seconds must be >= poller.base_delay_seconds")
	}
	if c.Poller.MaxAttempts <= 0 {
		return errors.New("poller.max_attempts must be positive")
	}
	if c.Poller.TimeoutSeconds <= 0 {
		return errors.New("poller.timeout_seconds must be positive")
	}
	if c.Poller.ResumeIntervalSeconds < 0 {
		return errors.New("poller.resume_interval_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrency <= 0 {
		return errors.New("workflow.max_concurrency must be positive")
	}
	switch c.Workflow.Store {
	case "sqlite", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when workflow.store is redis")
		}
	default:
		return fmt.Errorf("workflow.store: unsupported value %q (want sqlite, redis, or memory)", c.Workflow.Store)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
