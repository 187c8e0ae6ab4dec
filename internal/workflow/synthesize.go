package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/services"
	"dubline/internal/stage"
	"dubline/internal/state"
)

// SynthesisResult is one language's synthesis outcome.
type SynthesisResult struct {
	AudioURL string `json:"audio_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether audio was produced.
func (r SynthesisResult) OK() bool { return r.Error == "" && r.AudioURL != "" }

// SynthesisReport holds the attempted languages in Results and the ones that
// could not be attempted, with the reason, in Skipped.
type SynthesisReport struct {
	Results map[language.Code]SynthesisResult `json:"results"`
	Skipped map[language.Code]string          `json:"skipped,omitempty"`
}

// Failed counts attempted languages that produced no audio.
func (r SynthesisReport) Failed() int {
	count := 0
	for _, res := range r.Results {
		if !res.OK() {
			count++
		}
	}
	return count
}

// SynthesizeVoices voices each requested translation independently. An empty
// langs means every configured language. A language's failure is recorded in
// its result and never affects the others.
func (o *Orchestrator) SynthesizeVoices(ctx context.Context, id string, langs []language.Code) (SynthesisReport, error) {
	ctx = withStageContext(ctx, id, StageSynthesize, "")
	ws, err := o.load(ctx, id)
	if err != nil {
		return SynthesisReport{}, err
	}
	targets, skipped := o.requested(langs)
	attempt := make([]language.Code, 0, targets.Len())
	for _, code := range targets.Codes() {
		if strings.TrimSpace(ws.Translations[code]) == "" {
			skipped[code] = "no translation available"
			continue
		}
		attempt = append(attempt, code)
	}
	report := SynthesisReport{Results: make(map[language.Code]SynthesisResult, len(attempt)), Skipped: skipped}
	if len(attempt) == 0 {
		return report, precondition(StageSynthesize, "no requested language has a translation")
	}

	started := o.stageStarted(ctx, logging.String("languages", language.NewSet(attempt...).String()))
	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(o.maxConcurrency)
	for _, code := range attempt {
		group.Go(func() error {
			result := o.synthesizeOne(ctx, id, code)
			mu.Lock()
			report.Results[code] = result
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	failed := report.Failed()
	o.stageCompleted(ctx, started,
		logging.Int("synthesized", len(report.Results)-failed),
		logging.Int("failed", failed),
		logging.Int("skipped", len(report.Skipped)),
	)
	o.notifyStageCompleted(ctx, id, StageSynthesize, fmt.Sprintf("%d of %d languages voiced", len(report.Results)-failed, len(report.Results)))
	return report, nil
}

func (o *Orchestrator) synthesizeOne(ctx context.Context, id string, code language.Code) SynthesisResult {
	ctx = withStageContext(ctx, "", "", code)
	unlock := o.locks.Lock(lockKey(id, StageSynthesize, code))
	defer unlock()

	// Re-read under the lock so a concurrent edit is voiced, not the stale text.
	ws, err := o.load(ctx, id)
	if err != nil {
		return SynthesisResult{Error: err.Error()}
	}
	text := strings.TrimSpace(ws.Translations[code])
	if text == "" {
		return SynthesisResult{Error: "translation removed before synthesis"}
	}

	uri, err := o.deps.Synthesizer.Synthesize(ctx, stage.SynthesisRequest{WorkflowID: id, Language: code, Text: text})
	if err != nil {
		err = services.WrapLanguage(services.ErrSynthesis, StageSynthesize, string(code), "synthesize", "", err)
		o.stageFailed(ctx, StageSynthesize, err)
		return SynthesisResult{Error: services.Details(err).Message}
	}

	_, err = o.update(ctx, id, func(current *state.WorkflowState) error {
		if strings.TrimSpace(current.Translations[code]) != text {
			return precondition(StageSynthesize, "translation changed during synthesis")
		}
		current.SynthesizedAudio[code] = uri
		return nil
	})
	if err != nil {
		return SynthesisResult{Error: err.Error()}
	}
	o.stageLogger(ctx).Debug("voice synthesized", logging.String("audio_url", uri))
	return SynthesisResult{AudioURL: uri}
}

// SaveVoice stores an externally produced voice track for one language in
// place of synthesis. The language must be configured and translated.
func (o *Orchestrator) SaveVoice(ctx context.Context, id string, code language.Code, audioURL string) error {
	ctx = withStageContext(ctx, id, StageSynthesize, code)
	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return services.Wrap(services.ErrValidation, StageSynthesize, "save_voice", "no audio reference provided", nil)
	}
	if !o.languages.Contains(code) {
		return services.Wrap(services.ErrValidation, StageSynthesize, "save_voice", fmt.Sprintf("language %q is not configured", code), nil)
	}

	unlock := o.locks.Lock(lockKey(id, StageSynthesize, code))
	defer unlock()
	if _, err := o.load(ctx, id); err != nil {
		return err
	}
	_, err := o.update(ctx, id, func(ws *state.WorkflowState) error {
		if strings.TrimSpace(ws.Translations[code]) == "" {
			return precondition(StageSynthesize, fmt.Sprintf("no translation for %s", code.DisplayName()))
		}
		ws.SynthesizedAudio[code] = audioURL
		return nil
	})
	if err != nil {
		return err
	}
	o.stageLogger(ctx).Info("voice track saved",
		logging.String(logging.FieldEventType, "voice_saved"),
		logging.String("audio_url", audioURL),
	)
	return nil
}
