package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubline/internal/services"
)

func TestSpeakPostsVoiceSettings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/"+DefaultVoiceID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ModelID != DefaultModelID || req.VoiceSettings.Stability != 0.5 || req.Text != "namaste" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3"))
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL, Stability: 0.5, SimilarityBoost: 0.5}, server.Client())
	audio, err := client.Speak(context.Background(), "namaste")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if string(audio) != "ID3" {
		t.Fatalf("unexpected audio %q", audio)
	}
}

func TestSpeakQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"quota_exceeded"}`))
	}))
	defer server.Close()

	_, err := New(Config{APIKey: "secret", BaseURL: server.URL}, server.Client()).Speak(context.Background(), "x")
	if !errors.Is(err, services.ErrQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestSpeakJSONBodyIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := New(Config{APIKey: "secret", BaseURL: server.URL}, server.Client()).Speak(context.Background(), "x")
	if !errors.Is(err, services.ErrInvalidResponse) {
		t.Fatalf("expected invalid response, got %v", err)
	}
}
