package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/services"
	"dubline/internal/services/llm"
)

// JSONCompleter is a chat model in JSON mode.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Translation asks a chat model for every configured language in one call
// and validates that the answer covers exactly those languages.
type Translation struct {
	model    JSONCompleter
	audience string
	logger   *slog.Logger
}

// NewTranslation builds the adapter. audience shapes the cultural framing
// of the prompt.
func NewTranslation(model JSONCompleter, audience string, logger *slog.Logger) *Translation {
	return &Translation{model: model, audience: audience, logger: logging.NewComponentLogger(logger, "translation")}
}

func (t *Translation) Translate(ctx context.Context, req TranslationRequest) (map[language.Code]string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, services.Wrap(services.ErrValidation, "translation", "prepare", "empty transcript", nil)
	}
	if req.Languages.Empty() {
		return nil, services.Wrap(services.ErrValidation, "translation", "prepare", "no target languages", nil)
	}
	targets := make([]llm.TranslationTarget, 0, req.Languages.Len())
	for _, code := range req.Languages.Codes() {
		targets = append(targets, llm.TranslationTarget{Key: language.PromptKey(code), Name: code.DisplayName()})
	}
	prompt := llm.BuildTranslationPrompt(llm.TranslationRequest{
		Transcript: req.Text,
		Duration:   req.Duration,
		Audience:   t.audience,
		Targets:    targets,
	})
	content, err := t.model.CompleteJSON(ctx, llm.TranslationSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := llm.DecodeLLMJSON(content, &raw); err != nil {
		return nil, services.Wrap(services.ErrInvalidResponse, "translation", "decode", "translation payload is not a JSON object of strings", err)
	}
	out, err := NormalizeTranslations(raw, req.Languages)
	if err != nil {
		t.logger.WarnContext(ctx, "translation response rejected",
			logging.String(logging.FieldEventType, "translation_rejected"),
			logging.Error(err),
		)
		return nil, err
	}
	return out, nil
}

func (t *Translation) HealthCheck(ctx context.Context) Health {
	return healthFrom("translation", t.model.HealthCheck(ctx))
}

// NormalizeTranslations maps model keys (language names or codes) to
// canonical codes and requires exactly the expected set with non-empty
// texts.
func NormalizeTranslations(raw map[string]string, expected language.Set) (map[language.Code]string, error) {
	out := make(map[language.Code]string, len(raw))
	for key, text := range raw {
		code, err := language.Parse(key)
		if err != nil || !expected.Contains(code) {
			return nil, services.Wrap(services.ErrInvalidResponse, "translation", "validate",
				fmt.Sprintf("unexpected language key %q", key), nil)
		}
		if _, dup := out[code]; dup {
			return nil, services.Wrap(services.ErrInvalidResponse, "translation", "validate",
				fmt.Sprintf("language %s returned twice", code), nil)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, services.Wrap(services.ErrInvalidResponse, "translation", "validate",
				fmt.Sprintf("empty translation for %s", code), nil)
		}
		out[code] = text
	}
	if missing := expected.Difference(language.KeysOf(out)); !missing.Empty() {
		return nil, services.Wrap(services.ErrInvalidResponse, "translation", "validate",
			fmt.Sprintf("missing translations for %s", missing), nil)
	}
	return out, nil
}
