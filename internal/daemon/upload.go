package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"dubline/internal/api"
	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/objectstore"
	"dubline/internal/services"
	"dubline/internal/workflow"
)

const maxUploadBytes = 1 << 30

const stepVoice = "voice"

// stepExtensions is the per-step upload allowlist.
var stepExtensions = map[workflow.SourceKind][]string{
	workflow.SourceVideo: {".mp4", ".avi", ".mov"},
	workflow.SourceAudio: {".mp3", ".wav", ".m4a"},
}

var voiceExtensions = []string{".mp3", ".wav", ".m4a"}

// handleUpload stores a multipart "file" part and ingests it. The optional
// "step" field (video or audio) restricts the accepted extensions. Step
// "voice" with a "language" field stores the file as that language's voice
// track instead.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.daemon.workflow.Status(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, uploadError("no file provided", err))
		return
	}
	defer file.Close()

	name := strings.TrimSpace(header.Filename)
	if name == "" {
		s.writeError(w, r, uploadError("no file selected", nil))
		return
	}
	step := strings.ToLower(strings.TrimSpace(r.FormValue("step")))
	var (
		kind  workflow.SourceKind
		voice language.Code
	)
	if step == stepVoice {
		voice, err = voiceLanguage(r.FormValue("language"), name)
	} else {
		kind, err = uploadKind(step, name)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, uploadError(fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit), err))
			return
		}
		s.writeError(w, r, uploadError("read upload", err))
		return
	}

	key := objectstore.NewKey(name, time.Now())
	uri, err := s.daemon.objects.Put(r.Context(), data, key, objectstore.ContentTypeFor(name))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrIngest, workflow.StageIngest, "upload", "store upload", err))
		return
	}
	logging.WithContext(services.WithWorkflowID(r.Context(), id), s.log()).Info("upload stored",
		logging.String(logging.FieldEventType, "upload_stored"),
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)

	if step == stepVoice {
		if err := s.daemon.workflow.SaveVoice(r.Context(), id, voice, uri); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.VoiceResponse{Language: string(voice), AudioURL: uri, Key: key})
		return
	}

	result, err := s.daemon.workflow.Ingest(r.Context(), id, workflow.IngestSource{URL: uri, Kind: kind})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromIngestResult(result, key))
}

// handleDownload redirects to a presigned URL for a stored object.
func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" || strings.Contains(key, "..") {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "download", "invalid object key", nil))
		return
	}
	url, err := s.daemon.objects.PresignedGet(r.Context(), key, s.daemon.cfg.PresignTTL())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func uploadKind(step, name string) (workflow.SourceKind, error) {
	ext := strings.ToLower(path.Ext(name))
	step = strings.ToLower(strings.TrimSpace(step))
	if step == "" {
		kind, ok := workflow.InferKind(name)
		if !ok {
			return "", uploadError(fmt.Sprintf("file type %q not allowed", ext), services.ErrUnsupportedFormat)
		}
		return kind, nil
	}
	kind := workflow.SourceKind(step)
	allowed, ok := stepExtensions[kind]
	if !ok {
		return "", uploadError(fmt.Sprintf("unknown step %q", step), nil)
	}
	if !slices.Contains(allowed, ext) {
		return "", uploadError(fmt.Sprintf("file type %q not allowed for %s", ext, step), services.ErrUnsupportedFormat)
	}
	return kind, nil
}

func voiceLanguage(value, name string) (language.Code, error) {
	ext := strings.ToLower(path.Ext(name))
	if !slices.Contains(voiceExtensions, ext) {
		return "", uploadError(fmt.Sprintf("file type %q not allowed for voice", ext), services.ErrUnsupportedFormat)
	}
	if strings.TrimSpace(value) == "" {
		return "", services.Wrap(services.ErrValidation, workflow.StageSynthesize, "upload", "voice upload needs a language", nil)
	}
	code, err := language.Parse(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, workflow.StageSynthesize, "upload", fmt.Sprintf("unknown language %q", value), err)
	}
	return code, nil
}

func uploadError(msg string, cause error) error {
	return services.Wrap(services.ErrIngest, workflow.StageIngest, "upload", msg, cause)
}
