package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	startPath   = "/voice/api/session/start/"
	wakePath    = "/voice/api/session/wake/"
	commandPath = "/voice/api/session/command/"
	endPath     = "/voice/api/session/end/"
)

// ErrNetwork covers every failed backend exchange.
var ErrNetwork = errors.New("network error")

// HTTPError is a non-2xx reply from the backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return ErrNetwork }

// StartResponse is the reply to a session start.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// WakeResponse is the reply to a wake notification.
type WakeResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// CommandResponse is the reply to a relayed command.
type CommandResponse struct {
	Status string `json:"status"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command,omitempty"`
}

// Backend is the JSON client for the voice session endpoints.
type Backend struct {
	base   *url.URL
	client *http.Client
}

// NewBackend returns a client for the server at baseURL. Every call is
// bounded by timeout.
func NewBackend(baseURL string, timeout time.Duration) (*Backend, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: missing scheme or host", baseURL)
	}
	return &Backend{base: base, client: &http.Client{Timeout: timeout}}, nil
}

func (b *Backend) Start(ctx context.Context) (StartResponse, error) {
	var resp StartResponse
	err := b.post(ctx, startPath, struct{}{}, &resp)
	if err == nil && resp.SessionID == "" {
		err = fmt.Errorf("%w: start response has no session id", ErrNetwork)
	}
	return resp, err
}

func (b *Backend) Wake(ctx context.Context, id string) (WakeResponse, error) {
	var resp WakeResponse
	err := b.post(ctx, wakePath, sessionRequest{SessionID: id}, &resp)
	return resp, err
}

func (b *Backend) Command(ctx context.Context, id, command string) (CommandResponse, error) {
	var resp CommandResponse
	err := b.post(ctx, commandPath, sessionRequest{SessionID: id, Command: command}, &resp)
	return resp, err
}

func (b *Backend) End(ctx context.Context, id string) error {
	return b.post(ctx, endPath, sessionRequest{SessionID: id}, nil)
}

func (b *Backend) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base.String()+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: could not decode %s response: %v", ErrNetwork, path, err)
	}
	return nil
}
