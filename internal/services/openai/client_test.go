package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dubline/internal/services"
)

func TestTranscribeSendsMultipartAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "mp3-bytes" || header.Filename != "clip.mp3" {
				t.Errorf("unexpected upload %q %q", header.Filename, data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" Hello world "}`)
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL}, nil)
	text, err := client.Transcribe(context.Background(), "clip.mp3", []byte("mp3-bytes"), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Hello world" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeEmptyTextIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":""}`)
	}))
	defer server.Close()

	_, err := New(Config{APIKey: "k", BaseURL: server.URL}, nil).Transcribe(context.Background(), "a.wav", []byte("x"), "")
	if !errors.Is(err, services.ErrInvalidResponse) {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestSpeakReturnsAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"voice":"nova"`) {
			t.Errorf("expected default voice in %s", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer server.Close()

	data, err := New(Config{APIKey: "k", BaseURL: server.URL}, nil).Speak(context.Background(), "namaste")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if string(data) != "ID3audio" {
		t.Fatalf("unexpected audio %q", data)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, services.ErrQuota},
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusInternalServerError, services.ErrTransport},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"test"}}`)
		}))
		_, err := New(Config{APIKey: "k", BaseURL: server.URL}, nil).Speak(context.Background(), "x")
		server.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestMissingKey(t *testing.T) {
	_, err := New(Config{}, nil).Transcribe(context.Background(), "a.mp3", nil, "")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCompleteJSONUsesJSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"json_object"`) {
			t.Errorf("expected json mode in %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"hindi\":\"x\"}"}}]}`)
	}))
	defer server.Close()

	content, err := New(Config{APIKey: "k", BaseURL: server.URL, ChatModel: "gpt-4o-mini"}, nil).CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"hindi":"x"}` {
		t.Fatalf("unexpected content %q", content)
	}
}
