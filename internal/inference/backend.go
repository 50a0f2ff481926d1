// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package inference calls the external recognition model service and
// classifies its failures so the worker can distinguish transient faults
// from permanent ones.
package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pantrio/internal/models"
)

// Backend produces recognition candidates for an image. Implementations
// must honor context cancellation.
type Backend interface {
	Recognize(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error)
}

// HTTPBackend talks to a recognition model service over HTTP. The image
// bytes are POSTed as the request body; the response is a JSON array of
// candidates.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend client for the given service URL.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type recognizeResponse struct {
	Candidates []models.RecognitionCandidate `json:"candidates"`
}

// Recognize sends the image to the model service and decodes the candidate
// list. Failures are classified onto the package error taxonomy.
func (b *HTTPBackend) Recognize(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/recognize", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return nil, err
	}

	var decoded recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return decoded.Candidates, nil
}
