package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPrecondition      = errors.New("precondition not met")
	ErrIngest            = errors.New("ingest error")
	ErrTranscription     = errors.New("transcription error")
	ErrTranslation       = errors.New("translation error")
	ErrSynthesis         = errors.New("synthesis error")
	ErrLipSync           = errors.New("lip-sync error")
	ErrTransport         = errors.New("transport error")
	ErrQuota             = errors.New("quota exceeded")
	ErrInvalidResponse   = errors.New("invalid response")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrJobNotFound       = errors.New("job not found")
	ErrJobTimeout        = errors.New("job timed out")
	ErrJobFailed         = errors.New("job failed")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
)

var markerKinds = []struct {
	marker error
	kind   string
	hint   string
}{
	{ErrPrecondition, "precondition", "run the earlier workflow stage first"},
	{ErrIngest, "ingest", "upload a supported video or audio file"},
	{ErrTranscription, "transcription", "check the audio upload and transcription service"},
	{ErrTranslation, "translation", "retry translation or edit translations manually"},
	{ErrSynthesis, "synthesis", "check the speech synthesis service and quota"},
	{ErrLipSync, "lipsync", "check the lip-sync service dashboard"},
	{ErrTransport, "transport", "the service was unreachable; retry shortly"},
	{ErrQuota, "quota", "service quota exhausted; wait before retrying"},
	{ErrInvalidResponse, "invalid_response", "the service returned an unexpected payload"},
	{ErrUnsupportedFormat, "unsupported_format", "convert the media to a supported format"},
	{ErrJobNotFound, "job_not_found", "the service no longer knows this job; resubmit"},
	{ErrJobTimeout, "job_timeout", "resubmit the job or raise poller limits"},
	{ErrJobFailed, "job_failed", "inspect the job error and resubmit"},
	{ErrValidation, "validation", "fix the request payload"},
	{ErrConfiguration, "configuration", "check config.toml and credentials"},
	{ErrNotFound, "not_found", "check the workflow id"},
}

// Error carries the stage context for a failure. It unwraps to both the
// classification marker and the underlying cause so errors.Is matches either.
type Error struct {
	Marker    error
	Stage     string
	Language  string
	Operation string
	Message   string
	Hint      string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Language, e.Operation, e.Message)
	marker := e.Marker
	if marker == nil {
		marker = ErrTransport
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", marker, detail)
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	return &Error{Marker: marker, Stage: stage, Operation: operation, Message: message, Err: err}
}

// WrapLanguage is Wrap for failures scoped to one target language.
func WrapLanguage(marker error, stage, lang, operation, message string, err error) error {
	return &Error{Marker: marker, Stage: stage, Language: lang, Operation: operation, Message: message, Err: err}
}

// WithHint attaches an operator hint to err when it is a *Error.
func WithHint(err error, hint string) error {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		return err
	}
	clone := *svcErr
	clone.Hint = strings.TrimSpace(hint)
	if svcErr == err {
		return &clone
	}
	return &Error{Marker: clone.Marker, Stage: clone.Stage, Language: clone.Language, Operation: clone.Operation, Message: clone.Message, Hint: clone.Hint, Err: err}
}

// ErrorDetails is the flattened view used by logs and API payloads.
type ErrorDetails struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	Language  string `json:"language,omitempty"`
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Cause     string `json:"cause,omitempty"`
}

// Details extracts structured context from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: err.Error(), Hint: Hint(err)}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		details.Stage = svcErr.Stage
		details.Language = svcErr.Language
		details.Operation = svcErr.Operation
		if msg := strings.TrimSpace(svcErr.Message); msg != "" {
			details.Message = msg
		}
		if svcErr.Err != nil {
			details.Cause = svcErr.Err.Error()
		}
	}
	return details
}

// Kind returns a stable classification label. The outermost *Error marker
// wins so a transcription failure caused by a timeout reports "transcription".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Marker != nil {
		for _, entry := range markerKinds {
			if svcErr.Marker == entry.marker {
				return entry.kind
			}
		}
	}
	for _, entry := range markerKinds {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	return "internal"
}

// Hint returns the explicit hint on err or the default hint for its kind.
func Hint(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Hint != "" {
		return svcErr.Hint
	}
	kind := Kind(err)
	for _, entry := range markerKinds {
		if entry.kind == kind {
			return entry.hint
		}
	}
	return "check logs for details"
}

// Retryable reports whether err is a transient transport or quota failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrQuota)
}

func buildDetail(stage, lang, operation, message string) string {
	parts := make([]string, 0, 4)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if lang = strings.TrimSpace(lang); lang != "" {
		parts = append(parts, lang)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
