package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dubline/internal/config"
	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/notifications"
	"dubline/internal/poller"
	"dubline/internal/services"
	"dubline/internal/stage"
	"dubline/internal/state"
)

// Stage names used in logs, errors and notifications.
const (
	StageIngest     = "ingest"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StageLipSync    = "lipsync"
)

// Dependencies are the stage adapters the Orchestrator drives. Extractor and
// Notifier are optional.
type Dependencies struct {
	Transcriber stage.Transcriber
	Translator  stage.Translator
	Synthesizer stage.Synthesizer
	LipSyncer   stage.LipSyncer
	Extractor   stage.AudioExtractor
	Notifier    notifications.Service
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPoller replaces the poller built from config.
func WithPoller(p *poller.Poller) Option {
	return func(o *Orchestrator) { o.poller = p }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs workflow stages against a Repository.
type Orchestrator struct {
	repo     state.Repository
	deps     Dependencies
	poller   *poller.Poller
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
	locks    *keyedMutex

	languages       language.Set
	source          language.Code
	defaultDuration time.Duration
	fallback        bool
	autoPoll        bool
	maxConcurrency  int
}

// New validates dependencies and builds an Orchestrator.
func New(cfg *config.Config, repo state.Repository, deps Dependencies, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "config is required", nil)
	}
	if repo == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "repository is required", nil)
	}
	switch {
	case deps.Transcriber == nil:
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "transcriber is required", nil)
	case deps.Translator == nil:
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "translator is required", nil)
	case deps.Synthesizer == nil:
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "synthesizer is required", nil)
	case deps.LipSyncer == nil:
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "lip-syncer is required", nil)
	}
	languages := cfg.TargetLanguages()
	if languages.Empty() {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "no target languages configured", nil)
	}
	source, err := language.Parse(cfg.Languages.Source)
	if err != nil {
		source = ""
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	o := &Orchestrator{
		repo:            repo,
		deps:            deps,
		notifier:        deps.Notifier,
		logger:          logging.NewComponentLogger(logger, "workflow"),
		now:             time.Now,
		locks:           newKeyedMutex(),
		languages:       languages,
		source:          source,
		defaultDuration: cfg.DefaultDuration(),
		fallback:        cfg.Ingest.FallbackOnExtractFailure,
		autoPoll:        cfg.Poller.AutoPoll,
		maxConcurrency:  cfg.Workflow.MaxConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}
	if o.maxConcurrency <= 0 {
		o.maxConcurrency = 1
	}
	if o.poller == nil {
		base, maxDelay, timeout, attempts := cfg.PollerSettings()
		o.poller = poller.New(deps.LipSyncer, poller.Config{
			BaseDelay:   base,
			MaxDelay:    maxDelay,
			Timeout:     timeout,
			MaxAttempts: attempts,
		}, logger)
	}
	return o, nil
}

// Languages returns the configured target language set.
func (o *Orchestrator) Languages() language.Set { return o.languages }

// Create starts a new empty session.
func (o *Orchestrator) Create(ctx context.Context) (state.WorkflowState, error) {
	ws, err := o.repo.Create(ctx)
	if err != nil {
		return state.WorkflowState{}, err
	}
	logging.WithContext(services.WithWorkflowID(ctx, ws.ID), o.logger).Info("workflow created",
		logging.String(logging.FieldEventType, "workflow_created"),
	)
	return ws, nil
}

// Status returns a copy of the stored session.
func (o *Orchestrator) Status(ctx context.Context, id string) (state.WorkflowState, error) {
	return o.load(ctx, id)
}

// List returns every stored session, oldest first.
func (o *Orchestrator) List(ctx context.Context) ([]state.WorkflowState, error) {
	return o.repo.List(ctx)
}

// Delete stops the session's poll loops and removes it.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.cancelLoops(id)
	if err := o.repo.Delete(ctx, id); err != nil {
		return notFound(id, err)
	}
	logging.WithContext(services.WithWorkflowID(ctx, id), o.logger).Info("workflow deleted",
		logging.String(logging.FieldEventType, "workflow_deleted"),
	)
	return nil
}

// Health reports readiness for every stage adapter.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	out := []stage.Health{o.extractorHealth(ctx)}
	out = append(out,
		o.deps.Transcriber.HealthCheck(ctx),
		o.deps.Translator.HealthCheck(ctx),
		o.deps.Synthesizer.HealthCheck(ctx),
		o.deps.LipSyncer.HealthCheck(ctx),
	)
	return out
}

func (o *Orchestrator) extractorHealth(ctx context.Context) stage.Health {
	if o.deps.Extractor != nil {
		return o.deps.Extractor.HealthCheck(ctx)
	}
	if o.fallback {
		return stage.Health{Name: StageIngest, Ready: true, Detail: "no audio extractor; default duration applies"}
	}
	return stage.Unhealthy(StageIngest, "no audio extractor configured")
}

// ActivePolls returns the number of running lip-sync poll loops.
func (o *Orchestrator) ActivePolls() int { return o.poller.Active() }

// Shutdown stops all poll loops. Stored records keep their last state.
func (o *Orchestrator) Shutdown() {
	o.poller.Shutdown()
}

func (o *Orchestrator) load(ctx context.Context, id string) (state.WorkflowState, error) {
	ws, err := o.repo.Get(ctx, id)
	if err != nil {
		return state.WorkflowState{}, notFound(id, err)
	}
	return ws, nil
}

func (o *Orchestrator) update(ctx context.Context, id string, fn func(*state.WorkflowState) error) (state.WorkflowState, error) {
	ws, err := o.repo.Update(ctx, id, fn)
	if err != nil {
		return state.WorkflowState{}, notFound(id, err)
	}
	return ws, nil
}

func (o *Orchestrator) cancelLoops(id string) {
	for _, lang := range o.languages.Codes() {
		o.poller.Cancel(poller.Key{WorkflowID: id, Language: lang})
	}
}

// requested resolves a caller language list against the configured set.
// Unconfigured entries are returned separately.
func (o *Orchestrator) requested(langs []language.Code) (language.Set, map[language.Code]string) {
	if len(langs) == 0 {
		return o.languages, map[language.Code]string{}
	}
	asked := language.NewSet(langs...)
	skipped := make(map[language.Code]string)
	for _, code := range asked.Difference(o.languages).Codes() {
		skipped[code] = "language not configured"
	}
	return asked.Intersect(o.languages), skipped
}

func notFound(id string, err error) error {
	if errors.Is(err, state.ErrNotFound) {
		return services.Wrap(services.ErrNotFound, "workflow", "load", "unknown workflow "+id, err)
	}
	return err
}

func precondition(stageName, message string) error {
	return services.Wrap(services.ErrPrecondition, stageName, "check_preconditions", message, nil)
}
