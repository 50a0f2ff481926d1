// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package inference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/models"
)

// fakeBackend returns scripted results per call.
type fakeBackend struct {
	calls   atomic.Int32
	results []fakeResult
}

type fakeResult struct {
	candidates []models.RecognitionCandidate
	err        error
}

func (f *fakeBackend) Recognize(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error) {
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.results) {
		n = len(f.results) - 1
	}
	r := f.results[n]
	return r.candidates, r.err
}

func fastClientConfig() config.InferenceConfig {
	return config.InferenceConfig{
		Timeout:                 500 * time.Millisecond,
		MaxAttempts:             3,
		RetryInitial:            time.Millisecond,
		RetryMax:                5 * time.Millisecond,
		RetryMultiplier:         2.0,
		RequestsPerSecond:       0, // unlimited
		BreakerFailureThreshold: 100,
		BreakerTimeout:          time.Minute,
		BreakerMaxRequests:      1,
	}
}

func TestClient_RecognizeSuccess(t *testing.T) {
	want := []models.RecognitionCandidate{{Label: "tomato", Confidence: 0.93}}
	backend := &fakeBackend{results: []fakeResult{{candidates: want}}}
	c := NewClient(backend, fastClientConfig())

	got, err := c.Recognize(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got) != 1 || got[0].Label != "tomato" {
		t.Errorf("unexpected candidates: %+v", got)
	}
	if backend.calls.Load() != 1 {
		t.Errorf("expected 1 backend call, got %d", backend.calls.Load())
	}
}

func TestClient_RetriesTransientFailure(t *testing.T) {
	want := []models.RecognitionCandidate{{Label: "onion", Confidence: 0.8}}
	backend := &fakeBackend{results: []fakeResult{
		{err: ErrUnavailable},
		{err: ErrUnavailable},
		{candidates: want},
	}}
	c := NewClient(backend, fastClientConfig())

	got, err := c.Recognize(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got) != 1 || got[0].Label != "onion" {
		t.Errorf("unexpected candidates: %+v", got)
	}
	if backend.calls.Load() != 3 {
		t.Errorf("expected 3 backend calls, got %d", backend.calls.Load())
	}
}

func TestClient_InvalidInputNotRetried(t *testing.T) {
	backend := &fakeBackend{results: []fakeResult{{err: ErrInvalidInput}}}
	c := NewClient(backend, fastClientConfig())

	_, err := c.Recognize(context.Background(), []byte("img"), "image/jpeg")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if backend.calls.Load() != 1 {
		t.Errorf("rejected input must not be retried, got %d calls", backend.calls.Load())
	}
}

func TestClient_DeadlineBoundsAttempt(t *testing.T) {
	backend := &fakeBackend{results: []fakeResult{{err: ErrUnavailable}}}
	cfg := fastClientConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.RetryInitial = 50 * time.Millisecond
	c := NewClient(backend, cfg)

	start := time.Now()
	_, err := c.Recognize(context.Background(), []byte("img"), "image/jpeg")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("attempt not bounded by deadline, took %v", elapsed)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrUnavailable, true},
		{ErrTimeout, true},
		{ErrInvalidInput, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTimeout, "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{ErrInvalidInput, "invalid_input"},
		{ErrUnavailable, "unavailable"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHTTPBackend_StatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"success", http.StatusOK, `{"candidates":[{"label":"garlic","confidence":0.88}]}`, nil},
		{"rejected", http.StatusBadRequest, `{"error":"unsupported format"}`, ErrInvalidInput},
		{"server error", http.StatusInternalServerError, "", ErrUnavailable},
		{"overloaded", http.StatusServiceUnavailable, "", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body)) //nolint:errcheck // test server
			}))
			defer srv.Close()

			b := NewHTTPBackend(srv.URL, time.Second)
			candidates, err := b.Recognize(context.Background(), []byte("img"), "image/jpeg")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Recognize: %v", err)
			}
			if len(candidates) != 1 || candidates[0].Label != "garlic" {
				t.Errorf("unexpected candidates: %+v", candidates)
			}
		})
	}
}

func TestHTTPBackend_ConnectionRefused(t *testing.T) {
	b := NewHTTPBackend("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := b.Recognize(context.Background(), []byte("img"), "image/jpeg")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
