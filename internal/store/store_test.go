package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dubline/internal/language"
	"dubline/internal/state"
	"dubline/internal/store"
	"dubline/internal/testsupport"
)

func TestOpenCreatesSchemaAndRoundTrips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ws, err := st.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	polled := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	_, err = st.Update(ctx, ws.ID, func(s *state.WorkflowState) error {
		s.VideoURL = "s3://dubs/video.mp4"
		s.AudioURL = "s3://dubs/video_audio.mp3"
		s.VideoDuration = 45 * time.Second
		s.Transcript = "Hello world"
		s.Translations["hi"] = "नमस्ते दुनिया"
		s.Translations["ta"] = "வணக்கம் உலகம்"
		s.SynthesizedAudio["hi"] = "s3://dubs/hi_audio.mp3"
		rec := state.NewSubmittedJob("hi", "job-1", polled.Add(-5*time.Second))
		rec.State = state.JobPolling
		rec.Attempts = 2
		rec.LastPolledAt = &polled
		s.LipSyncJobs["hi"] = rec
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := st.Get(ctx, ws.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.VideoDuration != 45*time.Second || got.Transcript != "Hello world" {
		t.Fatalf("unexpected workflow %+v", got)
	}
	if got.Translations["ta"] != "வணக்கம் உலகம்" || len(got.Translations) != 2 {
		t.Fatalf("unexpected translations %+v", got.Translations)
	}
	rec := got.LipSyncJobs["hi"]
	if rec.JobID != "job-1" || rec.State != state.JobPolling || rec.Attempts != 2 {
		t.Fatalf("unexpected job record %+v", rec)
	}
	if rec.LastPolledAt == nil || !rec.LastPolledAt.Equal(polled) {
		t.Fatalf("unexpected last polled %v", rec.LastPolledAt)
	}
}

func TestUpdateErrorRollsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ws, _ := st.Create(ctx)

	reject := errors.New("missing tamil")
	_, err := st.Update(ctx, ws.ID, func(s *state.WorkflowState) error {
		s.Translations["hi"] = "partial"
		return reject
	})
	if !errors.Is(err, reject) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := st.Get(ctx, ws.ID)
	if len(got.Translations) != 0 {
		t.Fatalf("expected no translations after rollback, got %+v", got.Translations)
	}
}

func TestPendingJobsAndCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now()

	first, _ := st.Create(ctx)
	second, _ := st.Create(ctx)
	_, err := st.Update(ctx, first.ID, func(s *state.WorkflowState) error {
		s.LipSyncJobs["hi"] = state.NewSubmittedJob("hi", "job-a", now)
		s.LipSyncJobs["ta"] = state.NewFailedJob("ta", "no audio", now)
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	_, err = st.Update(ctx, second.ID, func(s *state.WorkflowState) error {
		rec := state.NewSubmittedJob("gu", "job-b", now.Add(time.Second))
		rec.State = state.JobPolling
		s.LipSyncJobs["gu"] = rec
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pending, err := st.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending jobs, got %+v", pending)
	}
	if pending[0].Record.JobID != "job-a" || pending[0].WorkflowID != first.ID {
		t.Fatalf("unexpected first pending job %+v", pending[0])
	}
	if pending[1].Record.Language != language.Code("gu") {
		t.Fatalf("unexpected second pending job %+v", pending[1])
	}

	counts, err := st.JobCounts(ctx)
	if err != nil {
		t.Fatalf("JobCounts failed: %v", err)
	}
	if counts[state.JobSubmitted] != 1 || counts[state.JobPolling] != 1 || counts[state.JobFailed] != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestListAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a, _ := st.Create(ctx)
	b, _ := st.Create(ctx)
	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(list))
	}
	if err := st.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.Get(ctx, a.ID); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.Delete(ctx, a.ID); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := st.Get(ctx, b.ID); err != nil {
		t.Fatalf("expected remaining workflow, got %v", err)
	}
}

func TestConcurrentLanguageUpdatesAllLand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ws, _ := st.Create(ctx)

	langs := []language.Code{"hi", "ta", "gu", "te"}
	var wg sync.WaitGroup
	for _, lang := range langs {
		wg.Add(1)
		go func(code language.Code) {
			defer wg.Done()
			if _, err := st.Update(ctx, ws.ID, func(s *state.WorkflowState) error {
				s.SynthesizedAudio[code] = "s3://dubs/" + string(code) + "_audio.mp3"
				return nil
			}); err != nil {
				t.Errorf("Update %s failed: %v", code, err)
			}
		}(lang)
	}
	wg.Wait()

	got, _ := st.Get(ctx, ws.ID)
	if len(got.SynthesizedAudio) != len(langs) {
		t.Fatalf("expected %d entries, got %+v", len(langs), got.SynthesizedAudio)
	}
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dubline.db")
	first, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	ctx := context.Background()
	ws, _ := first.Create(ctx)
	if _, err := first.Update(ctx, ws.ID, func(s *state.WorkflowState) error {
		s.Transcript = "persisted"
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	_ = first.Close()

	second, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	got, err := second.Get(ctx, ws.ID)
	if err != nil || got.Transcript != "persisted" {
		t.Fatalf("expected persisted transcript, got %+v err=%v", got, err)
	}
}
