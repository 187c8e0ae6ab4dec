package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dubline/internal/config"
	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/poller"
	"dubline/internal/stage"
	"dubline/internal/state"
	"dubline/internal/testsupport"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, stage.TranscriptionRequest) (string, error) {
	f.calls++
	return f.text, f.err
}

func (f *fakeTranscriber) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("transcription")
}

type fakeTranslator struct {
	out  map[language.Code]string
	err  error
	last stage.TranslationRequest
}

func (f *fakeTranslator) Translate(_ context.Context, req stage.TranslationRequest) (map[language.Code]string, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[language.Code]string, len(f.out))
	for k, v := range f.out {
		out[k] = v
	}
	return out, nil
}

func (f *fakeTranslator) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("translation")
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	fail  map[language.Code]error
	calls map[language.Code]int

	// delay holds each call open so overlapping calls for one language
	// are caught in overlapped.
	delay      time.Duration
	inFlight   map[language.Code]int
	overlapped bool
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, req stage.SynthesisRequest) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[language.Code]int)
		f.inFlight = make(map[language.Code]int)
	}
	f.calls[req.Language]++
	f.inFlight[req.Language]++
	if f.inFlight[req.Language] > 1 {
		f.overlapped = true
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight[req.Language]--
	if err := f.fail[req.Language]; err != nil {
		return "", err
	}
	return "mem://" + string(req.Language) + "_audio.mp3", nil
}

func (f *fakeSynthesizer) sawOverlap() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlapped
}

func (f *fakeSynthesizer) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("synthesis")
}

// fakeLipSyncer answers polls from a per-job script; jobs without a script
// stay running forever.
type fakeLipSyncer struct {
	mu        sync.Mutex
	submitErr map[language.Code]error
	results   map[string]stage.PollResult
	submitted []stage.LipSyncRequest
	polls     map[string]int

	// When hold is set Submit signals entered and then blocks until hold
	// is closed.
	entered chan struct{}
	hold    chan struct{}
}

func (f *fakeLipSyncer) Submit(_ context.Context, req stage.LipSyncRequest) (stage.JobHandle, error) {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.submitErr[req.Language]; err != nil {
		return stage.JobHandle{}, err
	}
	f.submitted = append(f.submitted, req)
	return stage.JobHandle{JobID: "job-" + string(req.Language)}, nil
}

func (f *fakeLipSyncer) PollOnce(_ context.Context, jobID string) (stage.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polls == nil {
		f.polls = make(map[string]int)
	}
	f.polls[jobID]++
	if res, ok := f.results[jobID]; ok {
		return res, nil
	}
	return stage.PollResult{Status: stage.PollRunning}, nil
}

func (f *fakeLipSyncer) HealthCheck(context.Context) stage.Health { return stage.Healthy("lipsync") }

func (f *fakeLipSyncer) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeExtractor struct {
	extraction stage.Extraction
	extractErr error
	probe      time.Duration
	probeErr   error
}

func (f *fakeExtractor) Extract(context.Context, string) (stage.Extraction, error) {
	return f.extraction, f.extractErr
}

func (f *fakeExtractor) Probe(context.Context, string) (time.Duration, error) {
	return f.probe, f.probeErr
}

func (f *fakeExtractor) HealthCheck(context.Context) stage.Health { return stage.Healthy("ingest") }

type recordingNotifier struct {
	mu       sync.Mutex
	stages   []string
	finished []state.JobRecord
	errors   []error
}

func (r *recordingNotifier) NotifyStageCompleted(_ context.Context, _ string, stageName, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stageName)
	return nil
}

func (r *recordingNotifier) NotifyLipSyncFinished(_ context.Context, _ string, rec state.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, rec)
	return nil
}

func (r *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) finishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finished)
}

type harness struct {
	cfg         *config.Config
	repo        *state.MemoryRepository
	transcriber *fakeTranscriber
	translator  *fakeTranslator
	synthesizer *fakeSynthesizer
	lipsync     *fakeLipSyncer
	extractor   *fakeExtractor
	notifier    *recordingNotifier
	orch        *Orchestrator
}

type harnessOption func(*harness)

func withAutoPoll(enabled bool) harnessOption {
	return func(h *harness) { h.cfg.Poller.AutoPoll = enabled }
}

func withFallback(enabled bool) harnessOption {
	return func(h *harness) { h.cfg.Ingest.FallbackOnExtractFailure = enabled }
}

func withoutExtractor() harnessOption {
	return func(h *harness) { h.extractor = nil }
}

func newHarness(t *testing.T, langs []string, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithLanguages(langs...))
	cfg.Poller.AutoPoll = false
	h := &harness{
		cfg:         cfg,
		repo:        state.NewMemoryRepository(),
		transcriber: &fakeTranscriber{text: "Hello world"},
		translator:  &fakeTranslator{},
		synthesizer: &fakeSynthesizer{},
		lipsync:     &fakeLipSyncer{results: map[string]stage.PollResult{}},
		extractor:   &fakeExtractor{extraction: stage.Extraction{AudioURL: "mem://source_audio.mp3", Duration: 45 * time.Second}},
		notifier:    &recordingNotifier{},
	}
	for _, opt := range opts {
		opt(h)
	}
	deps := Dependencies{
		Transcriber: h.transcriber,
		Translator:  h.translator,
		Synthesizer: h.synthesizer,
		LipSyncer:   h.lipsync,
		Notifier:    h.notifier,
	}
	if h.extractor != nil {
		deps.Extractor = h.extractor
	}
	p := poller.New(h.lipsync, poller.Config{
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Timeout:     time.Minute,
		MaxAttempts: 10000,
	}, logging.NewNop())
	orch, err := New(cfg, h.repo, deps, logging.NewNop(), WithPoller(p))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(orch.Shutdown)
	h.orch = orch
	return h
}

func (h *harness) create(t *testing.T) string {
	t.Helper()
	ws, err := h.orch.Create(context.Background())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return ws.ID
}

// seed writes ws fields directly, bypassing the stages.
func (h *harness) seed(t *testing.T, id string, fn func(*state.WorkflowState)) {
	t.Helper()
	_, err := h.repo.Update(context.Background(), id, func(ws *state.WorkflowState) error {
		fn(ws)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (h *harness) status(t *testing.T, id string) state.WorkflowState {
	t.Helper()
	ws, err := h.orch.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	return ws
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
