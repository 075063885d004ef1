// Audio provider [AudioProvider] implementation
//
// Communicates with a companion audio-fetch service that wraps a search and
// download backend. The service accepts a free-text query or direct URL plus
// a destination hint and streams the audio to disk on its side.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quietriver/waveplan/internal/shared"
)

const defaultAudioBaseURL = "http://localhost:8000"

// AudioClient implements [AudioProvider] against the companion provider
// service over HTTP.
type AudioClient struct {
	baseURL    string
	format     string
	httpClient *http.Client
}

// NewAudioClient creates a new audio provider client. The format (e.g.
// "mp3") is passed to the provider with every download request.
func NewAudioClient(baseURL, format string, httpClient *http.Client) *AudioClient {
	if baseURL == "" {
		baseURL = defaultAudioBaseURL
	}
	if format == "" {
		format = "mp3"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &AudioClient{
		baseURL:    baseURL,
		format:     format,
		httpClient: httpClient,
	}
}

// Download asks the provider to fetch audio matching query into destination.
//
// Calls POST /api/download on the provider.
func (a *AudioClient) Download(ctx context.Context, query, destination string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"query":       query,
		"destination": destination,
		"format":      a.format,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal download request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/download", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Path    string `json:"path"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", shared.ErrDownloadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %s", shared.ErrDownloadFailed, msg)
	}

	if result.Path == "" {
		result.Path = destination
	}
	return result.Path, nil
}

// Health checks the provider's health endpoint.
//
// Calls GET /health on the provider.
func (a *AudioClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: audio provider status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}
