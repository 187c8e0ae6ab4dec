package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/services"
	"dubline/internal/stage"
	"dubline/internal/state"
)

// Transcribe converts the ingested audio to text and stores it. Nothing is
// written when the adapter fails or returns an empty transcript.
func (o *Orchestrator) Transcribe(ctx context.Context, id string) (string, error) {
	ctx = withStageContext(ctx, id, StageTranscribe, "")
	ws, err := o.load(ctx, id)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(ws.AudioURL) == "" {
		return "", precondition(StageTranscribe, "no audio has been ingested")
	}

	unlock := o.locks.Lock(lockKey(id, StageTranscribe, ""))
	defer unlock()

	started := o.stageStarted(ctx, logging.String("audio_url", ws.AudioURL))
	text, err := o.deps.Transcriber.Transcribe(ctx, stage.TranscriptionRequest{AudioURL: ws.AudioURL, Language: o.source})
	if err != nil {
		err = services.Wrap(services.ErrTranscription, StageTranscribe, "transcribe", "", err)
		o.stageFailed(ctx, StageTranscribe, err)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		err = services.Wrap(services.ErrTranscription, StageTranscribe, "transcribe", "empty transcript", services.ErrInvalidResponse)
		o.stageFailed(ctx, StageTranscribe, err)
		return "", err
	}

	_, err = o.update(ctx, id, func(current *state.WorkflowState) error {
		if current.AudioURL != ws.AudioURL {
			return precondition(StageTranscribe, "source changed during transcription")
		}
		current.Transcript = text
		return nil
	})
	if err != nil {
		return "", err
	}
	o.stageCompleted(ctx, started, logging.Int("transcript_chars", len(text)))
	o.notifyStageCompleted(ctx, id, StageTranscribe, "")
	return text, nil
}

// SaveTranscript replaces the transcript with caller-edited text.
func (o *Orchestrator) SaveTranscript(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, StageTranscribe, "save", "transcript text is empty", nil)
	}
	unlock := o.locks.Lock(lockKey(id, StageTranscribe, ""))
	defer unlock()
	_, err := o.update(ctx, id, func(ws *state.WorkflowState) error {
		ws.Transcript = text
		return nil
	})
	return err
}

// Translate produces one translation per configured language. The commit is
// all-or-nothing: a response missing any language, carrying an extra one, or
// holding an empty text leaves Translations unchanged.
func (o *Orchestrator) Translate(ctx context.Context, id string) (map[language.Code]string, error) {
	ctx = withStageContext(ctx, id, StageTranslate, "")
	ws, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ws.Transcript) == "" {
		return nil, precondition(StageTranslate, "no transcript available")
	}

	unlock := o.locks.Lock(lockKey(id, StageTranslate, ""))
	defer unlock()

	started := o.stageStarted(ctx,
		logging.String("languages", o.languages.String()),
		logging.Duration("media_duration", ws.VideoDuration),
	)
	out, err := o.deps.Translator.Translate(ctx, stage.TranslationRequest{
		Text:      ws.Transcript,
		Duration:  ws.VideoDuration,
		Languages: o.languages,
	})
	if err == nil {
		err = checkTranslations(out, o.languages)
	}
	if err != nil {
		err = services.Wrap(services.ErrTranslation, StageTranslate, "translate", "", err)
		o.stageFailed(ctx, StageTranslate, err)
		return nil, err
	}

	translations := lo.MapValues(out, func(text string, _ language.Code) string { return strings.TrimSpace(text) })
	_, err = o.update(ctx, id, func(current *state.WorkflowState) error {
		if current.Transcript != ws.Transcript {
			return precondition(StageTranslate, "transcript changed during translation")
		}
		current.Translations = translations
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.stageCompleted(ctx, started, logging.Int("translations", len(translations)))
	o.notifyStageCompleted(ctx, id, StageTranslate, o.languages.String())
	return translations, nil
}

func checkTranslations(out map[language.Code]string, expected language.Set) error {
	got := language.KeysOf(out)
	if missing := expected.Difference(got); !missing.Empty() {
		return services.Wrap(services.ErrInvalidResponse, StageTranslate, "validate", "missing languages "+missing.String(), nil)
	}
	if extra := got.Difference(expected); !extra.Empty() {
		return services.Wrap(services.ErrInvalidResponse, StageTranslate, "validate", "unexpected languages "+extra.String(), nil)
	}
	blank := lo.PickBy(out, func(_ language.Code, text string) bool { return strings.TrimSpace(text) == "" })
	if len(blank) > 0 {
		return services.Wrap(services.ErrInvalidResponse, StageTranslate, "validate", "empty translation for "+language.KeysOf(blank).String(), nil)
	}
	return nil
}

// SaveTranslations merges caller-edited translations. Keys may use any
// recognized language form; every key must be configured and every text
// non-empty or nothing is written.
func (o *Orchestrator) SaveTranslations(ctx context.Context, id string, edits map[string]string) error {
	if len(edits) == 0 {
		return services.Wrap(services.ErrValidation, StageTranslate, "save", "no translations provided", nil)
	}
	normalized := make(map[language.Code]string, len(edits))
	for key, text := range edits {
		code, err := language.Parse(key)
		if err != nil {
			return services.Wrap(services.ErrValidation, StageTranslate, "save", fmt.Sprintf("unrecognized language %q", key), err)
		}
		if !o.languages.Contains(code) {
			return services.Wrap(services.ErrValidation, StageTranslate, "save", fmt.Sprintf("language %q is not configured", code), nil)
		}
		if strings.TrimSpace(text) == "" {
			return services.Wrap(services.ErrValidation, StageTranslate, "save", fmt.Sprintf("translation for %q is empty", code), nil)
		}
		normalized[code] = strings.TrimSpace(text)
	}
	unlock := o.locks.Lock(lockKey(id, StageTranslate, ""))
	defer unlock()
	_, err := o.update(ctx, id, func(ws *state.WorkflowState) error {
		for code, text := range normalized {
			ws.Translations[code] = text
		}
		return nil
	})
	return err
}
