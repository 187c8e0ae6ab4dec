package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dubline/internal/api"
	"dubline/internal/language"
	"dubline/internal/services"
	"dubline/internal/workflow"
)

const maxJSONBody = 1 << 20

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	ws, err := s.daemon.workflow.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.WorkflowResponse{Workflow: api.FromWorkflowState(ws)})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.workflow.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowListResponse{Workflows: api.FromWorkflowStates(list)})
}

func (s *apiServer) handleShow(w http.ResponseWriter, r *http.Request) {
	ws, err := s.daemon.workflow.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowResponse{Workflow: api.FromWorkflowState(ws)})
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.workflow.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req api.IngestRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	src := workflow.IngestSource{URL: req.URL, Kind: workflow.SourceKind(strings.ToLower(strings.TrimSpace(req.Kind)))}
	result, err := s.daemon.workflow.Ingest(r.Context(), r.PathValue("id"), src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromIngestResult(result, ""))
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	text, err := s.daemon.workflow.Transcribe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TranscriptResponse{Transcript: text})
}

func (s *apiServer) handleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	var req api.TranscriptRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.daemon.workflow.SaveTranscript(r.Context(), id, req.Transcript); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeUpdated(w, r, id)
}

func (s *apiServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	translations, err := s.daemon.workflow.Translate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]string, len(translations))
	for code, text := range translations {
		out[string(code)] = text
	}
	s.writeJSON(w, http.StatusOK, api.TranslationsResponse{Translations: out})
}

func (s *apiServer) handleSaveTranslations(w http.ResponseWriter, r *http.Request) {
	var req api.TranslationsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.daemon.workflow.SaveTranslations(r.Context(), id, req.Translations); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeUpdated(w, r, id)
}

func (s *apiServer) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	langs, err := requestLanguages(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.daemon.workflow.SynthesizeVoices(r.Context(), r.PathValue("id"), langs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSynthesisReport(report))
}

func (s *apiServer) handleLipSync(w http.ResponseWriter, r *http.Request) {
	langs, err := requestLanguages(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.daemon.workflow.LipSync(r.Context(), r.PathValue("id"), langs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromLipSyncReport(report))
}

// handleAwait blocks until the requested jobs are terminal. An optional
// timeout query parameter, in seconds, bounds the wait.
func (s *apiServer) handleAwait(w http.ResponseWriter, r *http.Request) {
	langs, err := requestLanguages(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if raw := strings.TrimSpace(r.URL.Query().Get("timeout")); raw != "" {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil || seconds <= 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "await", fmt.Sprintf("invalid timeout %q", raw), convErr))
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()
	}
	jobs, err := s.daemon.workflow.AwaitLipSync(ctx, r.PathValue("id"), langs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LipSyncResponse{Jobs: api.FromJobRecords(jobs)})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	code, err := language.Parse(r.PathValue("lang"))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "cancel", fmt.Sprintf("unknown language %q", r.PathValue("lang")), err))
		return
	}
	cancelled, err := s.daemon.workflow.CancelLipSync(r.Context(), r.PathValue("id"), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: cancelled})
}

func (s *apiServer) writeUpdated(w http.ResponseWriter, r *http.Request, id string) {
	ws, err := s.daemon.workflow.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowResponse{Workflow: api.FromWorkflowState(ws)})
}

// requestLanguages reads an optional LanguagesRequest body.
func requestLanguages(r *http.Request) ([]language.Code, error) {
	var req api.LanguagesRequest
	if err := decodeJSON(r, &req, true); err != nil {
		return nil, err
	}
	return api.ParseLanguages(req.Languages)
}

func decodeJSON(r *http.Request, target any, allowEmpty bool) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err)
	}
	return nil
}
