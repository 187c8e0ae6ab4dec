package daemon

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dubline/internal/api"
	"dubline/internal/workflow"
)

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.daemon.api.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, id, step, name string) *httptest.ResponseRecorder {
	t.Helper()
	return f.uploadForm(t, id, map[string]string{"step": step}, name)
}

func (f *fixture) uploadForm(t *testing.T, id string, fields map[string]string, name string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if value != "" {
			_ = mw.WriteField(key, value)
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte("media bytes"))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/workflows/"+id+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.daemon.api.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func TestAPIWorkflowLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/workflows", nil)
	expectStatus(t, w, http.StatusCreated)
	id := decode[api.WorkflowResponse](t, w).Workflow.ID

	w = f.upload(t, id, "video", "talk.mp4")
	expectStatus(t, w, http.StatusOK)
	ingest := decode[api.IngestResponse](t, w)
	if !ingest.Degraded || ingest.Duration != "00:30" || !strings.HasSuffix(ingest.Key, "_talk.mp4") {
		t.Fatalf("unexpected ingest response %+v", ingest)
	}
	if f.objects.Len() != 1 {
		t.Fatalf("expected stored upload, got %d objects", f.objects.Len())
	}

	// No extractor is wired, so a bare video has no audio to transcribe.
	w = f.do(t, http.MethodPost, "/api/workflows/"+id+"/transcribe", nil)
	expectStatus(t, w, http.StatusConflict)
	if body := decode[api.ErrorResponse](t, w); body.Kind != "precondition" || body.Stage != workflow.StageTranscribe {
		t.Fatalf("unexpected error body %+v", body)
	}

	w = f.do(t, http.MethodPut, "/api/workflows/"+id+"/transcript", api.TranscriptRequest{Transcript: "Hello world"})
	expectStatus(t, w, http.StatusOK)

	w = f.do(t, http.MethodPost, "/api/workflows/"+id+"/translate", nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[api.TranslationsResponse](t, w).Translations; len(got) != 2 || got["hi"] != "text in Hindi" {
		t.Fatalf("unexpected translations %v", got)
	}

	w = f.do(t, http.MethodPost, "/api/workflows/"+id+"/synthesize", api.LanguagesRequest{Languages: []string{"hindi"}})
	expectStatus(t, w, http.StatusOK)
	synth := decode[api.SynthesisResponse](t, w)
	if len(synth.Results) != 1 || synth.Results["hi"].AudioURL != "mem://hi_audio.mp3" {
		t.Fatalf("unexpected synthesis %+v", synth)
	}

	w = f.do(t, http.MethodPost, "/api/workflows/"+id+"/lipsync", nil)
	expectStatus(t, w, http.StatusAccepted)
	lip := decode[api.LipSyncResponse](t, w)
	if lip.Jobs["hi"].State != "submitted" || lip.Jobs["ta"].State != "failed" {
		t.Fatalf("unexpected lip-sync jobs %+v", lip.Jobs)
	}

	w = f.do(t, http.MethodPost, "/api/workflows/"+id+"/lipsync/await?timeout=5", nil)
	expectStatus(t, w, http.StatusOK)
	if job := decode[api.LipSyncResponse](t, w).Jobs["hi"]; job.State != "succeeded" || job.OutputURL != "https://cdn.example/job-hi.mp4" {
		t.Fatalf("unexpected awaited job %+v", job)
	}

	w = f.do(t, http.MethodGet, "/api/download/"+ingest.Key, nil)
	expectStatus(t, w, http.StatusFound)
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "expires=3600") {
		t.Fatalf("unexpected redirect %q", loc)
	}

	w = f.do(t, http.MethodGet, "/api/workflows", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[api.WorkflowListResponse](t, w).Workflows; len(list) != 1 || list[0].Phase != "lipsync_done" {
		t.Fatalf("unexpected list %+v", list)
	}

	expectStatus(t, f.do(t, http.MethodDelete, "/api/workflows/"+id, nil), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodGet, "/api/workflows/"+id, nil), http.StatusNotFound)
}

func TestAPIRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	id := decode[api.WorkflowResponse](t, f.do(t, http.MethodPost, "/api/workflows", nil)).Workflow.ID

	expectStatus(t, f.upload(t, id, "audio", "talk.mp4"), http.StatusBadRequest)
	expectStatus(t, f.upload(t, id, "", "notes.txt"), http.StatusBadRequest)
	expectStatus(t, f.upload(t, "missing", "video", "talk.mp4"), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodPut, "/api/workflows/"+id+"/transcript", "{not json"), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/workflows/"+id+"/synthesize", api.LanguagesRequest{Languages: []string{"klingon"}}), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodDelete, "/api/workflows/"+id+"/lipsync/klingon", nil), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/workflows/"+id+"/lipsync/await?timeout=soon", nil), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodGet, "/api/download/missing.mp4", nil), http.StatusNotFound)

	w := f.do(t, http.MethodDelete, "/api/workflows/"+id+"/lipsync/hi", nil)
	expectStatus(t, w, http.StatusOK)
	if decode[api.CancelResponse](t, w).Cancelled {
		t.Fatal("nothing was polling")
	}
}

func TestVoiceUploadStoresLanguageTrack(t *testing.T) {
	f := newFixture(t)
	id := decode[api.WorkflowResponse](t, f.do(t, http.MethodPost, "/api/workflows", nil)).Workflow.ID

	voice := func(lang, name string) *httptest.ResponseRecorder {
		return f.uploadForm(t, id, map[string]string{"step": "voice", "language": lang}, name)
	}
	expectStatus(t, voice("hindi", "narration.mp4"), http.StatusBadRequest)
	expectStatus(t, voice("", "narration.wav"), http.StatusBadRequest)
	expectStatus(t, voice("klingon", "narration.wav"), http.StatusBadRequest)
	// Nothing translated yet.
	expectStatus(t, voice("hindi", "narration.wav"), http.StatusConflict)

	w := f.do(t, http.MethodPut, "/api/workflows/"+id+"/translations",
		api.TranslationsRequest{Translations: map[string]string{"hi": "namaste"}})
	expectStatus(t, w, http.StatusOK)

	w = voice("hindi", "narration.wav")
	expectStatus(t, w, http.StatusOK)
	resp := decode[api.VoiceResponse](t, w)
	if resp.Language != "hi" || !strings.HasSuffix(resp.Key, "_narration.wav") || resp.AudioURL == "" {
		t.Fatalf("unexpected voice response %+v", resp)
	}

	w = f.do(t, http.MethodGet, "/api/workflows/"+id, nil)
	expectStatus(t, w, http.StatusOK)
	ws := decode[api.WorkflowResponse](t, w).Workflow
	if ws.SynthesizedAudio["hi"] != resp.AudioURL {
		t.Fatalf("voice track not stored: %+v", ws.SynthesizedAudio)
	}
}

func TestAPIStatus(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/status", nil)
	expectStatus(t, w, http.StatusOK)
	status := decode[api.DaemonStatus](t, w)
	if status.Running || len(status.Languages) != 2 || len(status.StageHealth) != 5 || len(status.Dependencies) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodOptions, "/api/workflows", nil)
	expectStatus(t, w, http.StatusNoContent)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestUploadKind(t *testing.T) {
	cases := []struct {
		step, name string
		want       workflow.SourceKind
		ok         bool
	}{
		{"video", "a.MOV", workflow.SourceVideo, true},
		{"audio", "a.m4a", workflow.SourceAudio, true},
		{"", "a.wav", workflow.SourceAudio, true},
		{"audio", "a.mp4", "", false},
		{"subtitles", "a.srt", "", false},
	}
	for _, tc := range cases {
		got, err := uploadKind(tc.step, tc.name)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("uploadKind(%q, %q) = %q, %v", tc.step, tc.name, got, err)
		}
	}
}
