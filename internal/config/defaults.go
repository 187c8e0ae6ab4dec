package config

const (
	defaultStateDir               = "~/.local/share/dubline"
	defaultWorkDir                = "~/.local/share/dubline/work"
	defaultLogDir                 = "~/.local/share/dubline/logs"
	defaultAPIBind                = "127.0.0.1:7510"
	defaultSourceLanguage         = "en"
	defaultIngestDurationSeconds  = 30
	defaultExtractTimeoutSeconds  = 300
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultStorageProvider        = "s3"
	defaultStorageRegion          = "auto"
	defaultPresignTTLSeconds      = 3600
	defaultTranscriptionBaseURL   = "https://api.openai.com/v1"
	defaultTranscriptionModel     = "whisper-1"
	defaultTranscriptionTimeout   = 120
	defaultTranslationProvider    = "openrouter"
	defaultTranslationBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel       = "anthropic/claude-sonnet-4"
	defaultTranslationTitle       = "dubline translation"
	defaultTranslationAudience    = "Indian"
	defaultTranslationTimeout     = 90
	defaultSynthesisProvider      = "elevenlabs"
	defaultElevenLabsBaseURL      = "https://api.elevenlabs.io"
	defaultElevenLabsVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	defaultElevenLabsModelID      = "eleven_multilingual_v2"
	defaultSynthesisStability     = 0.5
	defaultSynthesisSimilarity    = 0.5
	defaultOpenAIVoice            = "nova"
	defaultSynthesisTimeout       = 120
	defaultLipSyncBaseURL         = "https://api.sync.so/v2"
	defaultLipSyncModel           = "lipsync-2"
	defaultLipSyncMode            = "cut_off"
	defaultLipSyncTimeout         = 30
	defaultPollerBaseDelaySeconds = 5
	defaultPollerMaxDelaySeconds  = 60
	defaultPollerMaxAttempts      = 120
	defaultPollerTimeoutSeconds   = 3600
	defaultPollerResumeSeconds    = 15
	defaultMaxConcurrency         = 4
	defaultWorkflowStore          = "sqlite"
	defaultRedisAddr              = "127.0.0.1:6379"
	defaultRedisKey               = "dubline:workflows"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var defaultTargetLanguages = []string{"hi", "ta", "gu", "te"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Languages: Languages{
			Source:  defaultSourceLanguage,
			Targets: append([]string(nil), defaultTargetLanguages...),
		},
		Ingest: Ingest{
			DefaultDurationSeconds:   defaultIngestDurationSeconds,
			FallbackOnExtractFailure: true,
			ExtractTimeoutSeconds:    defaultExtractTimeoutSeconds,
			FFmpegBinary:             defaultFFmpegBinary,
			FFprobeBinary:            defaultFFprobeBinary,
		},
		Storage: Storage{
			Provider:          defaultStorageProvider,
			Region:            defaultStorageRegion,
			UseSSL:            true,
			PresignTTLSeconds: defaultPresignTTLSeconds,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscriptionBaseURL,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Translation: Translation{
			Provider:       defaultTranslationProvider,
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			Title:          defaultTranslationTitle,
			Audience:       defaultTranslationAudience,
			TimeoutSeconds: defaultTranslationTimeout,
		},
		Synthesis: Synthesis{
			Provider:        defaultSynthesisProvider,
			BaseURL:         defaultElevenLabsBaseURL,
			VoiceID:         defaultElevenLabsVoiceID,
			ModelID:         defaultElevenLabsModelID,
			Stability:       defaultSynthesisStability,
			SimilarityBoost: defaultSynthesisSimilarity,
			OpenAIVoice:     defaultOpenAIVoice,
			TimeoutSeconds:  defaultSynthesisTimeout,
		},
		LipSync: LipSync{
			BaseURL:        defaultLipSyncBaseURL,
			Model:          defaultLipSyncModel,
			SyncMode:       defaultLipSyncMode,
			TimeoutSeconds: defaultLipSyncTimeout,
		},
		Poller: Poller{
			BaseDelaySeconds:      defaultPollerBaseDelaySeconds,
			MaxDelaySeconds:       defaultPollerMaxDelaySeconds,
			MaxAttempts:           defaultPollerMaxAttempts,
			TimeoutSeconds:        defaultPollerTimeoutSeconds,
			AutoPoll:              true,
			ResumeIntervalSeconds: defaultPollerResumeSeconds,
		},
		Workflow: Workflow{
			MaxConcurrency: defaultMaxConcurrency,
			Store:          defaultWorkflowStore,
		},
		Redis: Redis{
			Addr: defaultRedisAddr,
			Key:  defaultRedisKey,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			LipSync:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
