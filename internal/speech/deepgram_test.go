package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepgramTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token dg_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		q := r.URL.Query()
		if q.Get("model") != "nova-2" || q.Get("punctuate") != "true" {
			t.Errorf("unexpected query params %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"I need a demo."}]}]}}`))
	}))
	defer srv.Close()

	client, err := NewDeepgramClient(DeepgramClientConfig{APIKey: "dg_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transcript, err := client.Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if transcript != "I need a demo." {
		t.Fatalf("got %q", transcript)
	}
}

func TestDeepgramEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer srv.Close()

	client, err := NewDeepgramClient(DeepgramClientConfig{APIKey: "dg_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transcript, err := client.Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected empty transcript, got %q", transcript)
	}
}

func TestDeepgramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewDeepgramClient(DeepgramClientConfig{APIKey: "dg_test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), []byte("audio")); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestDeepgramNoAudioShortCircuits(t *testing.T) {
	client, err := NewDeepgramClient(DeepgramClientConfig{APIKey: "dg_test", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transcript, err := client.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected nil error for empty audio, got %v", err)
	}
	if transcript != "" {
		t.Fatalf("expected empty transcript, got %q", transcript)
	}
}

func TestNewDeepgramClientRequiresAPIKey(t *testing.T) {
	if _, err := NewDeepgramClient(DeepgramClientConfig{}); err == nil {
		t.Fatal("expected error when API key missing")
	}
}
