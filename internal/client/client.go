// Package client is the HTTP side the practice app talks through: notation
// fetches for the renderer, recommendations for the navigator, practice
// submissions for the recorder, and the song and history listings the TUI
// shows. It implements the consumer interfaces in internal/viewer and
// internal/practice against the API served by internal/server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"etude/internal/logging"
	"etude/internal/practice"
	"etude/internal/store"
	"etude/internal/viewer"
)

// Client calls the practice API at a fixed base URL. Safe for concurrent
// use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

var (
	_ viewer.Fetcher                = (*Client)(nil)
	_ practice.Submitter            = (*Client)(nil)
	_ practice.RecommendationSource = (*Client)(nil)
)

// Config tunes the client transport.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig returns sensible defaults for a local server.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// New creates a client with default config.
func New(baseURL string) *Client {
	return NewWithConfig(DefaultConfig(baseURL))
}

// NewWithConfig creates a client with custom config.
func NewWithConfig(config Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		maxRetries: config.MaxRetries,
	}
}

// FetchData retrieves raw notation bytes for a path relative to the data
// root. A 404 from the API is reported as the renderer's NotFound; the
// declared content type is passed through for the caller's own sniffing.
func (c *Client) FetchData(ctx context.Context, path string) ([]byte, string, error) {
	u := c.baseURL + "/data/" + encodePath(path)
	body, contentType, status, err := c.get(ctx, u)
	if err != nil {
		return nil, "", err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s", viewer.ErrNotFound, path)
	case status != http.StatusOK:
		return nil, "", fmt.Errorf("unexpected status %d for %s", status, path)
	}
	logging.FetchDebug("fetched %s (%d bytes, %s)", path, len(body), contentType)
	return body, contentType, nil
}

// NextMeasure asks the server what to practice next. (nil, nil) means the
// song has nothing to practice.
func (c *Client) NextMeasure(ctx context.Context, songID int) (*practice.Recommendation, error) {
	u := fmt.Sprintf("%s/api/songs/%d/next-measure", c.baseURL, songID)
	body, _, status, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from next-measure", status)
	}
	var rec practice.Recommendation
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse recommendation: %w", err)
	}
	return &rec, nil
}

// SubmitPractice posts one practice event. POSTs are never retried; the
// caller decides what a lost rating means.
func (c *Client) SubmitPractice(ctx context.Context, ev practice.Event) error {
	payload := map[string]any{
		"songId":     ev.SongID,
		"fragmentId": ev.FragmentID,
		"rating":     string(ev.Rating),
	}
	if ev.DurationSeconds > 0 {
		payload["durationSeconds"] = ev.DurationSeconds
	}
	if ev.Notes != "" {
		payload["notes"] = ev.Notes
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal practice event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/practice", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("practice submission failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("practice submission rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// ListSongs returns the song library.
func (c *Client) ListSongs(ctx context.Context) ([]store.Song, error) {
	body, _, status, err := c.get(ctx, c.baseURL+"/api/songs")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from songs", status)
	}
	var songs []store.Song
	if err := json.Unmarshal(body, &songs); err != nil {
		return nil, fmt.Errorf("failed to parse songs: %w", err)
	}
	return songs, nil
}

// ListSessions returns the practice history, newest first. limit of 0 means
// all sessions.
func (c *Client) ListSessions(ctx context.Context, limit int) ([]store.Session, error) {
	u := c.baseURL + "/api/practice-sessions"
	if limit > 0 {
		u += fmt.Sprintf("?limit=%d", limit)
	}
	body, _, status, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from practice-sessions", status)
	}
	var sessions []store.Session
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, nil
}

// ClearSessions deletes the whole practice history and reports how many
// sessions went. Like SubmitPractice, the request is never retried.
func (c *Client) ClearSessions(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/practice-sessions", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("clear sessions failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("clear sessions rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("failed to parse clear response: %w", err)
	}
	return out.Deleted, nil
}

// get performs a GET with retries on transport errors, 429 and 5xx.
// Retrying is safe here; every GET in the API is idempotent.
func (c *Client) get(ctx context.Context, u string) (body []byte, contentType string, status int, err error) {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * 250 * time.Millisecond):
			case <-ctx.Done():
				return nil, "", 0, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, "", 0, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			logging.FetchWarn("GET %s: %v", u, err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, u)
			logging.FetchWarn("GET %s: status %d, retrying", u, resp.StatusCode)
			continue
		}
		return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
	}
	return nil, "", 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// encodePath escapes each segment of a slash-separated path.
func encodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
