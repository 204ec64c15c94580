// Package remote provides the HTTP client for the shynote remote store.
//
// The remote store owns entity versions: every mutating note response
// echoes the entity including its current version, and updates carry the
// last-observed version so the server's optimistic lock can reject stale
// writes. The client never invents version numbers.
//
// Transient failures (network errors, 429, 5xx) are retried with linearly
// increasing delay; everything else is surfaced to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shynote/shynote/internal/vault/schema"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the remote store origin, e.g. https://notes.example.com
	BaseURL string

	// Token is the bearer token attached to every request.
	Token string

	// Timeout bounds each individual request (default: 30s).
	Timeout time.Duration

	// MaxRetries is the number of retries after the initial attempt for
	// retryable failures (default: 2).
	MaxRetries int

	// BaseDelay is the unit of the linear backoff: attempt n waits
	// n * BaseDelay (default: 1s).
	BaseDelay time.Duration

	// Logger for request activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Logger:     log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
}

// Client talks to the remote store's CRUD surface.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *log.Logger
}

// New creates a remote store client.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: &http.Client{Timeout: config.Timeout},
		maxRetries: config.MaxRetries,
		baseDelay:  config.BaseDelay,
		logger:     config.Logger,
	}
}

// NoteRequest is the wire payload for note creates and updates. FolderID
// is a pointer so "no folder" serializes as an explicit null rather than
// being omitted.
type NoteRequest struct {
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	FolderID *string `json:"folder_id"`
	Pinned   bool    `json:"pinned"`

	// Version is the optimistic-lock token, set on updates only.
	Version int64 `json:"version,omitempty"`
}

// FolderRequest is the wire payload for folder creates and updates.
type FolderRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// ListNotes fetches the authenticated owner's full note listing.
func (c *Client) ListNotes(ctx context.Context) ([]*schema.Note, error) {
	var notes []*schema.Note
	if err := c.doWithRetry(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// ListFolders fetches the authenticated owner's full folder listing.
func (c *Client) ListFolders(ctx context.Context) ([]*schema.Folder, error) {
	var folders []*schema.Folder
	if err := c.doWithRetry(ctx, http.MethodGet, "/api/folders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// CreateNote creates a note with the client-chosen id. The server honors
// client-supplied time-ordered ids rather than generating its own.
func (c *Client) CreateNote(ctx context.Context, req NoteRequest) (*schema.Note, error) {
	var note schema.Note
	if err := c.doWithRetry(ctx, http.MethodPost, "/api/notes", req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote updates a note. req.Version must carry the last version this
// client observed; a stale version yields ErrConflict, an unknown id
// ErrNotFound.
func (c *Client) UpdateNote(ctx context.Context, id string, req NoteRequest) (*schema.Note, error) {
	var note schema.Note
	if err := c.doWithRetry(ctx, http.MethodPut, "/api/notes/"+id, req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote deletes a note. Returns ErrNotFound when the note is already
// gone; callers treat that as success.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.doWithRetry(ctx, http.MethodDelete, "/api/notes/"+id, nil, nil)
}

// CreateFolder creates a folder with the client-chosen id.
func (c *Client) CreateFolder(ctx context.Context, req FolderRequest) (*schema.Folder, error) {
	var folder schema.Folder
	if err := c.doWithRetry(ctx, http.MethodPost, "/api/folders", req, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpdateFolder renames a folder.
func (c *Client) UpdateFolder(ctx context.Context, id string, req FolderRequest) (*schema.Folder, error) {
	var folder schema.Folder
	if err := c.doWithRetry(ctx, http.MethodPut, "/api/folders/"+id, req, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeleteFolder deletes a folder.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.doWithRetry(ctx, http.MethodDelete, "/api/folders/"+id, nil, nil)
}

// Ping probes connectivity with an unauthenticated request to the service
// root. Used by the daemon to detect offline-to-online transitions.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// doWithRetry runs one logical request, retrying retryable failures up to
// maxRetries additional times. Attempt n sleeps n * baseDelay first.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.baseDelay
			c.logger.Printf("Retrying %s %s in %s (attempt %d/%d): %v",
				method, path, delay, attempt, c.maxRetries, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.do(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

// do performs a single authenticated request and decodes the response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response (%v): %w", method, path, err, ErrBadResponse)
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)

	case resp.StatusCode == http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, path, ErrConflict)

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
}
