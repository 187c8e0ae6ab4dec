package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dubline/internal/config"
	"dubline/internal/logging"
	"dubline/internal/media"
	"dubline/internal/notifications"
	"dubline/internal/objectstore"
	"dubline/internal/services"
	"dubline/internal/services/elevenlabs"
	"dubline/internal/services/llm"
	"dubline/internal/services/openai"
	"dubline/internal/services/syncso"
	"dubline/internal/stage"
	"dubline/internal/state"
	"dubline/internal/store"
	"dubline/internal/store/redisstore"
	"dubline/internal/workflow"
)

const fetchTimeout = 5 * time.Minute

// Runtime bundles the components shared by the daemon and one-shot CLI
// commands.
type Runtime struct {
	Config       *config.Config
	Repo         state.Repository
	Objects      objectstore.Store
	Notifier     notifications.Service
	Orchestrator *workflow.Orchestrator
}

// Build opens storage and wires every stage adapter from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	objects, err := objectstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier := notifications.NewService(cfg)
	deps := Adapters(cfg, objects, logger)
	deps.Notifier = notifier

	orch, err := workflow.New(cfg, repo, deps, logger)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	return &Runtime{
		Config:       cfg,
		Repo:         repo,
		Objects:      objects,
		Notifier:     notifier,
		Orchestrator: orch,
	}, nil
}

// Close stops poll loops and closes the repository.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Orchestrator.Shutdown()
	return r.Repo.Close()
}

// OpenRepository opens the workflow store named by workflow.store.
func OpenRepository(ctx context.Context, cfg *config.Config) (state.Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Workflow.Store)) {
	case "", "sqlite":
		repo, err := store.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open workflow database: %w", err)
		}
		return repo, nil
	case "redis":
		repo, err := redisstore.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open redis workflow store: %w", err)
		}
		return repo, nil
	case "memory":
		return state.NewMemoryRepository(), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "open_store",
			fmt.Sprintf("unknown workflow store %q", cfg.Workflow.Store), nil)
	}
}

// Adapters builds the stage adapters for the configured providers.
func Adapters(cfg *config.Config, objects objectstore.Store, logger *slog.Logger) workflow.Dependencies {
	fetchClient := &http.Client{Timeout: fetchTimeout}

	whisper := openai.New(openai.Config{
		APIKey:             cfg.Transcription.APIKey,
		BaseURL:            cfg.Transcription.BaseURL,
		TranscriptionModel: cfg.Transcription.Model,
		TimeoutSeconds:     cfg.Transcription.TimeoutSeconds,
	}, nil)

	return workflow.Dependencies{
		Transcriber: stage.NewTranscription(whisper, objects, fetchClient, logger),
		Translator:  stage.NewTranslation(translationModel(cfg), cfg.Translation.Audience, logger),
		Synthesizer: stage.NewSynthesis(speechClient(cfg), objects, logger),
		LipSyncer: stage.NewLipSync(syncso.New(syncso.Config{
			APIKey:   cfg.LipSync.APIKey,
			BaseURL:  cfg.LipSync.BaseURL,
			Model:    cfg.LipSync.Model,
			SyncMode: cfg.LipSync.SyncMode,
		}, &http.Client{Timeout: seconds(cfg.LipSync.TimeoutSeconds)}), objects, cfg.PresignTTL()),
		Extractor: media.NewExtractor(cfg, objects, fetchClient, logger),
	}
}

func translationModel(cfg *config.Config) stage.JSONCompleter {
	if cfg.Translation.Provider == "openai" {
		return openai.New(openai.Config{
			APIKey:         cfg.Translation.APIKey,
			BaseURL:        cfg.Transcription.BaseURL,
			ChatModel:      cfg.Translation.Model,
			TimeoutSeconds: cfg.Translation.TimeoutSeconds,
		}, nil)
	}
	return llm.NewClient(llm.Config{
		APIKey:         cfg.Translation.APIKey,
		BaseURL:        cfg.Translation.BaseURL,
		Model:          cfg.Translation.Model,
		Referer:        cfg.Translation.Referer,
		Title:          cfg.Translation.Title,
		TimeoutSeconds: cfg.Translation.TimeoutSeconds,
	})
}

func speechClient(cfg *config.Config) stage.TextToSpeech {
	if cfg.Synthesis.Provider == "openai" {
		return openai.New(openai.Config{
			APIKey:         cfg.Synthesis.APIKey,
			BaseURL:        cfg.Transcription.BaseURL,
			Voice:          cfg.Synthesis.OpenAIVoice,
			TimeoutSeconds: cfg.Synthesis.TimeoutSeconds,
		}, nil)
	}
	return elevenlabs.New(elevenlabs.Config{
		APIKey:          cfg.Synthesis.APIKey,
		BaseURL:         cfg.Synthesis.BaseURL,
		VoiceID:         cfg.Synthesis.VoiceID,
		ModelID:         cfg.Synthesis.ModelID,
		Stability:       cfg.Synthesis.Stability,
		SimilarityBoost: cfg.Synthesis.SimilarityBoost,
	}, &http.Client{Timeout: seconds(cfg.Synthesis.TimeoutSeconds)})
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(value) * time.Second
}
