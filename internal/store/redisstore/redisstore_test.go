package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"dubline/internal/language"
	"dubline/internal/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	srv := miniredis.RunT(t)
	s := New(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "test:workflows")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEncodeDecodeKeepsJobRecords(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ws := state.NewWorkflowState("wf-1", now)
	ws.VideoDuration = 45 * time.Second
	ws.Translations["hi"] = "namaste"
	rec := state.NewSubmittedJob("hi", "job-1", now)
	polled := now.Add(5 * time.Second)
	rec.LastPolledAt = &polled
	rec.Attempts = 1
	ws.LipSyncJobs["hi"] = rec

	data, err := encode(ws)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.VideoDuration != 45*time.Second || got.Translations["hi"] != "namaste" {
		t.Fatalf("unexpected decoded workflow %+v", got)
	}
	if got.LipSyncJobs["hi"].LastPolledAt == nil || !got.LipSyncJobs["hi"].LastPolledAt.Equal(polled) {
		t.Fatalf("unexpected decoded job %+v", got.LipSyncJobs["hi"])
	}
	if got.SynthesizedAudio == nil {
		t.Fatal("expected decode to initialize empty maps")
	}
}

func TestKeysAreNamespaced(t *testing.T) {
	s := New(nil, "")
	if s.indexKey() != "dubline:workflows" {
		t.Fatalf("unexpected index key %q", s.indexKey())
	}
	if s.workflowKey("abc") != "dubline:workflows:abc" {
		t.Fatalf("unexpected workflow key %q", s.workflowKey("abc"))
	}
}

func TestConcurrentLanguageUpdatesAllLand(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ws, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	langs := []language.Code{"hi", "ta", "gu", "te", "mr", "bn"}
	var wg sync.WaitGroup
	for _, lang := range langs {
		wg.Add(1)
		go func(code language.Code) {
			defer wg.Done()
			if _, err := s.Update(ctx, ws.ID, func(w *state.WorkflowState) error {
				time.Sleep(2 * time.Millisecond)
				w.SynthesizedAudio[code] = "s3://dubs/" + string(code) + "_audio.mp3"
				return nil
			}); err != nil {
				t.Errorf("Update %s: %v", code, err)
			}
		}(lang)
	}
	wg.Wait()

	got, err := s.Get(ctx, ws.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.SynthesizedAudio) != len(langs) {
		t.Fatalf("expected %d entries, got %+v", len(langs), got.SynthesizedAudio)
	}
}

func TestCreateListDeleteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first, _ := s.Create(ctx)
	second, _ := s.Create(ctx)
	if _, err := s.Update(ctx, second.ID, func(w *state.WorkflowState) error {
		w.LipSyncJobs["hi"] = state.NewSubmittedJob("hi", "job-1", time.Now())
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := s.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
	pending, err := s.PendingJobs(ctx)
	if err != nil || len(pending) != 1 || pending[0].WorkflowID != second.ID {
		t.Fatalf("PendingJobs = %+v, %v", pending, err)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, first.ID); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, first.ID); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.Update(ctx, first.ID, func(*state.WorkflowState) error { return nil }); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}
