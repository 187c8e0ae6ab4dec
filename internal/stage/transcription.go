package stage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"dubline/internal/logging"
	"dubline/internal/objectstore"
	"dubline/internal/services"
)

var transcribableExtensions = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".mp4": true}

// SpeechToText is the service client used by Transcription.
type SpeechToText interface {
	Transcribe(ctx context.Context, filename string, audio []byte, lang string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Transcription fetches audio from storage and sends it to a speech-to-text
// service.
type Transcription struct {
	client SpeechToText
	store  objectstore.Store
	http   services.HTTPDoer
	logger *slog.Logger
}

// NewTranscription builds the adapter. httpClient is used for non-store
// audio URLs and may be nil.
func NewTranscription(client SpeechToText, store objectstore.Store, httpClient services.HTTPDoer, logger *slog.Logger) *Transcription {
	return &Transcription{
		client: client,
		store:  store,
		http:   httpClient,
		logger: logging.NewComponentLogger(logger, "transcription"),
	}
}

func (t *Transcription) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	filename := mediaFilename(req.AudioURL)
	if !transcribableExtensions[strings.ToLower(path.Ext(filename))] {
		return "", services.Wrap(services.ErrUnsupportedFormat, "transcription", "prepare",
			fmt.Sprintf("cannot transcribe %q", filename), nil)
	}
	audio, err := objectstore.Fetch(ctx, t.store, t.http, req.AudioURL)
	if err != nil {
		return "", err
	}
	t.logger.DebugContext(ctx, "sending audio for transcription",
		logging.String("file", filename),
		logging.Int("bytes", len(audio)),
	)
	text, err := t.client.Transcribe(ctx, filename, audio, string(req.Language))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrInvalidResponse, "transcription", "transcribe", "empty transcript", nil)
	}
	return text, nil
}

func (t *Transcription) HealthCheck(ctx context.Context) Health {
	return healthFrom("transcription", t.client.HealthCheck(ctx))
}

// mediaFilename returns the last path element of a store URI or URL,
// without any query string.
func mediaFilename(ref string) string {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	return path.Base(ref)
}
