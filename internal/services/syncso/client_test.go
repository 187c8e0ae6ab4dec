package syncso

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubline/internal/services"
)

func TestSubmitSendsInputsAndMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Input) != 2 || req.Input[0].URL != "https://v" || req.Input[1].Type != "audio" {
			t.Errorf("unexpected inputs %+v", req.Input)
		}
		if req.Options.SyncMode != "cut_off" || req.Model != DefaultModel {
			t.Errorf("unexpected options %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "gen-1", "status": "PENDING"})
	}))
	defer server.Close()

	gen, err := New(Config{APIKey: "k", BaseURL: server.URL}, server.Client()).Submit(context.Background(), "https://v", "https://a")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gen.ID != "gen-1" || gen.Status != StatusPending {
		t.Fatalf("unexpected generation %+v", gen)
	}
}

func TestSubmitWithoutIDIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"PENDING"}`))
	}))
	defer server.Close()

	_, err := New(Config{APIKey: "k", BaseURL: server.URL}, server.Client()).Submit(context.Background(), "v", "a")
	if !errors.Is(err, services.ErrInvalidResponse) {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestGetStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate/done":
			_, _ = w.Write([]byte(`{"id":"done","status":"completed","outputUrl":"https://out/video.mp4"}`))
		case "/generate/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	client := New(Config{APIKey: "k", BaseURL: server.URL}, server.Client())

	gen, err := client.Get(context.Background(), "done")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gen.Status != StatusCompleted || gen.OutputURL != "https://out/video.mp4" {
		t.Fatalf("unexpected generation %+v", gen)
	}
	if _, err := client.Get(context.Background(), "busy"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, err := client.Get(context.Background(), "gone"); !errors.Is(err, services.ErrJobNotFound) {
		t.Fatalf("expected job not found, got %v", err)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
