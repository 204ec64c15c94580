package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// testClient builds a client against srv with millisecond backoff so retry
// tests run fast.
func testClient(srv *httptest.Server) *Client {
	return New(&Config{
		BaseURL:    srv.URL,
		Token:      "test-token",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Logger:     log.New(os.Stderr, "[remote-test] ", 0),
	})
}

func TestRetryBound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := testClient(srv)
	_, err := client.ListNotes(context.Background())
	if err == nil {
		t.Fatal("expected failure after retry budget exhausted")
	}

	if got := attempts.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts (1 initial + 2 retries), got %d", got)
	}

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 503 {
		t.Errorf("expected StatusError 503, got %v", err)
	}
}

func TestRetryRecovers(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	client := testClient(srv)
	notes, err := client.ListNotes(context.Background())
	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("expected empty listing, got %d", len(notes))
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := testClient(srv)
	if _, err := client.ListNotes(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", got)
	}
}

func TestNotFoundAndConflictSentinels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusConflict)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := testClient(srv)

	_, err := client.UpdateNote(context.Background(), "n1", NoteRequest{Title: "t", Version: 3})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict from 409, got %v", err)
	}

	err = client.DeleteNote(context.Background(), "n1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from 404, got %v", err)
	}
}

func TestUpdateSendsVersionAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "n1", "title": "t", "version": 8,
		})
	}))
	defer srv.Close()

	client := testClient(srv)
	note, err := client.UpdateNote(context.Background(), "n1", NoteRequest{
		Title:   "t",
		Version: 7,
	})
	if err != nil {
		t.Fatalf("UpdateNote failed: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("missing bearer token, got %q", gotAuth)
	}
	if gotBody["version"] != float64(7) {
		t.Errorf("expected version 7 in body, got %v", gotBody["version"])
	}
	// folder_id must serialize as an explicit null, not be omitted.
	if _, present := gotBody["folder_id"]; !present {
		t.Error("folder_id missing from update body")
	}
	if note.Version != 8 {
		t.Errorf("expected echoed version 8, got %d", note.Version)
	}
}

func TestNoRetryOnMalformedResponse(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = w.Write([]byte("{truncated"))
	}))
	defer srv.Close()

	client := testClient(srv)
	_, err := client.CreateNote(context.Background(), NoteRequest{Title: "t"})
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
	// The server applied the write; replaying it could 409 against the
	// server's own version bump.
	if got := attempts.Load(); got != 1 {
		t.Errorf("malformed 2xx must not be retried, got %d attempts", got)
	}
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", ErrNotFound, false},
		{"conflict", ErrConflict, false},
		{"malformed response", ErrBadResponse, false},
		{"server error", &StatusError{StatusCode: 500}, true},
		{"rate limit", &StatusError{StatusCode: 429}, true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"network", errors.New("connection refused"), true},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
