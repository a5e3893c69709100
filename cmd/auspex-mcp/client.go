package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/pkg/models"
)

// apiClient talks to a running auspex server. It lazily creates one
// dashboard session and reuses it for every tool call in this process.
type apiClient struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	sessionID string
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ensureSession creates the backing dashboard session on first use.
func (c *apiClient) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return c.sessionID, nil
	}

	body, status, err := c.do(ctx, http.MethodPost, "/api/session", "", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("session create returned HTTP %d: %s", status, body)
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}
	c.sessionID = resp.SessionID
	return c.sessionID, nil
}

func (c *apiClient) do(ctx context.Context, method, path, sessionID string, payload interface{}) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("auspex server unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// call performs a session-scoped request and surfaces API error envelopes.
func (c *apiClient) call(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, method, path, sessionID, payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
			return nil, fmt.Errorf("%s (HTTP %d)", envelope.Message, status)
		}
		return nil, fmt.Errorf("HTTP %d: %s", status, body)
	}
	return body, nil
}

func (c *apiClient) snapshot(ctx context.Context) (*pipeline.SessionSnapshot, error) {
	body, err := c.call(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		return nil, err
	}
	var snap pipeline.SessionSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse state snapshot: %w", err)
	}
	return &snap, nil
}

func (c *apiClient) setTicker(ctx context.Context, ticker string) error {
	_, err := c.call(ctx, http.MethodPost, "/api/ticker", map[string]string{"ticker": ticker})
	return err
}

func (c *apiClient) startAnalysis(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, "/api/analysis", nil)
	return err
}

func (c *apiClient) generateKeyTakeaways(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, "/api/analysis/key-takeaways", nil)
	return err
}

func (c *apiClient) analyzeOptions(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, "/api/analysis/options", nil)
	return err
}

func (c *apiClient) slot(ctx context.Context, name string) (string, error) {
	body, err := c.call(ctx, http.MethodGet, "/api/slots/"+name, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *apiClient) submitChat(ctx context.Context, message string) error {
	_, err := c.call(ctx, http.MethodPost, "/api/chat", map[string]string{"message": message})
	return err
}

func (c *apiClient) chatHistory(ctx context.Context) ([]models.ChatMessage, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ChatHistory, nil
}

// waitForIdle polls the session until the pipeline settles back to IDLE.
// Returns the final snapshot even when the deadline is hit so callers can
// report partial progress.
func (c *apiClient) waitForIdle(ctx context.Context, timeout time.Duration) (*pipeline.SessionSnapshot, error) {
	deadline := time.Now().Add(timeout)
	var last *pipeline.SessionSnapshot

	for {
		snap, err := c.snapshot(ctx)
		if err != nil {
			return last, err
		}
		last = snap
		if snap.PipelineState == pipeline.StateIdle {
			return snap, nil
		}
		if time.Now().After(deadline) {
			return snap, fmt.Errorf("pipeline still in %s after %s", snap.PipelineState, timeout)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}
