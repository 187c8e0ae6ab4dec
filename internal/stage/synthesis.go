package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dubline/internal/logging"
	"dubline/internal/objectstore"
	"dubline/internal/services"
)

// TextToSpeech is the service client used by Synthesis.
type TextToSpeech interface {
	Speak(ctx context.Context, text string) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// Synthesis voices a translation and stores the mp3.
type Synthesis struct {
	tts    TextToSpeech
	store  objectstore.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewSynthesis builds the adapter.
func NewSynthesis(tts TextToSpeech, store objectstore.Store, logger *slog.Logger) *Synthesis {
	return &Synthesis{tts: tts, store: store, now: time.Now, logger: logging.NewComponentLogger(logger, "synthesis")}
}

func (s *Synthesis) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", services.WrapLanguage(services.ErrValidation, "synthesis", string(req.Language), "prepare", "empty text", nil)
	}
	audio, err := s.tts.Speak(ctx, req.Text)
	if err != nil {
		return "", err
	}
	key := objectstore.NewKey(fmt.Sprintf("%s_audio.mp3", req.Language), s.now())
	uri, err := s.store.Put(ctx, audio, key, "audio/mpeg")
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "stored synthesized audio",
		logging.String("key", key),
		logging.Int("bytes", len(audio)),
	)
	return uri, nil
}

func (s *Synthesis) HealthCheck(ctx context.Context) Health {
	if err := s.tts.HealthCheck(ctx); err != nil {
		return Unhealthy("synthesis", err.Error())
	}
	return healthFrom("synthesis", s.store.HealthCheck(ctx))
}
