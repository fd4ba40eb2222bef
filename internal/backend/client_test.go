package backend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mitralabs/coco/internal/backend"
	"github.com/mitralabs/coco/internal/faults"
)

func TestUploadSendsExpectedHeadersAndBody(t *testing.T) {
	var got struct {
		method      string
		contentType string
		apiKey      string
		disposition string
		body        []byte
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.contentType = r.Header.Get("Content-Type")
		got.apiKey = r.Header.Get("X-API-Key")
		got.disposition = r.Header.Get("Content-Disposition")
		got.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{
		UploadURL:   server.URL,
		APIKey:      "secret",
		AudioFormat: "wav",
	})

	payload := []byte("RIFF-audio-bytes")
	if err := client.Upload(context.Background(), "3_1_ts_start.wav", payload); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if got.method != http.MethodPost {
		t.Fatalf("unexpected method: %s", got.method)
	}
	if got.contentType != "audio/wav" {
		t.Fatalf("unexpected content type: %q", got.contentType)
	}
	if got.apiKey != "secret" {
		t.Fatalf("unexpected api key: %q", got.apiKey)
	}
	if want := `form-data; name="file"; filename="3_1_ts_start.wav"`; got.disposition != want {
		t.Fatalf("unexpected disposition: %q want %q", got.disposition, want)
	}
	if string(got.body) != string(payload) {
		t.Fatalf("unexpected body: %q", got.body)
	}
}

func TestUploadTreatsNon2xxAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{UploadURL: server.URL})
	err := client.Upload(context.Background(), "a.wav", []byte("x"))
	if !errors.Is(err, faults.ErrTransientNetwork) {
		t.Fatalf("expected transient network error, got %v", err)
	}
}

func TestUploadAccepts200And201(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client := backend.NewClient(backend.Options{UploadURL: server.URL})
		if err := client.Upload(context.Background(), "a.wav", []byte("x")); err != nil {
			t.Fatalf("status %d must succeed: %v", status, err)
		}
		server.Close()
	}
}

func TestCheckHealthRequires200Exactly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("health probe missing api key")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{HealthURL: server.URL, APIKey: "secret"})
	if err := client.CheckHealth(context.Background()); !errors.Is(err, faults.ErrTransientNetwork) {
		t.Fatalf("202 must fail the probe, got %v", err)
	}
}

func TestCheckHealthSucceedsOn200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{HealthURL: server.URL})
	if err := client.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
}

func TestNotifySessionCompleteWithoutEndpointIsNoOp(t *testing.T) {
	client := backend.NewClient(backend.Options{})
	if err := client.NotifySessionComplete(context.Background(), 1); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestNotifySessionCompleteSendsSessionNumber(t *testing.T) {
	sessions := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sessions <- r.URL.Query().Get("recording_session")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{SessionCompleteURL: server.URL})
	if err := client.NotifySessionComplete(context.Background(), 42); err != nil {
		t.Fatalf("NotifySessionComplete failed: %v", err)
	}
	select {
	case got := <-sessions:
		if got != "42" {
			t.Fatalf("recording_session = %q, want \"42\"", got)
		}
	default:
		t.Fatal("endpoint was not called")
	}
}

func TestCurrentTimeParsesDateHeader(t *testing.T) {
	want := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", want.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{HealthURL: server.URL})
	got, err := client.CurrentTime(context.Background())
	if err != nil {
		t.Fatalf("CurrentTime failed: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("CurrentTime = %v, want %v", got, want)
	}
}

func TestCurrentTimeRejectsUnhealthyBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := backend.NewClient(backend.Options{HealthURL: server.URL})
	if _, err := client.CurrentTime(context.Background()); !errors.Is(err, faults.ErrTransientNetwork) {
		t.Fatalf("expected transient network error, got %v", err)
	}
}
