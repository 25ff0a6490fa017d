// Package ollama is a small client for the Ollama HTTP API, shared by the
// embedder, the answer generator and the status command.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
)

// DefaultHost is the default Ollama API endpoint.
const DefaultHost = "http://localhost:11434"

// StatusError is a non-200 response from Ollama.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may help (5xx and 429).
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to one Ollama host.
type Client struct {
	host      string
	client    *http.Client
	transport *http.Transport
}

// NewClient creates a client for host ("" means DefaultHost).
// No client-wide timeout is set; callers bound requests with their context.
func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	return &Client{
		host:      strings.TrimRight(host, "/"),
		client:    &http.Client{Transport: transport},
		transport: transport,
	}
}

// Host returns the API endpoint.
func (c *Client) Host() string {
	return c.host
}

// PostJSON sends in as JSON to path and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return tutorerrors.NetworkError(fmt.Sprintf("failed to connect to Ollama at %s", c.host), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListModels returns the installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var result ModelListResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// IsRunning reports whether the host answers /api/tags.
func (c *Client) IsRunning(ctx context.Context) bool {
	_, err := c.ListModels(ctx)
	return err == nil
}

// FindModel resolves model against the installed models. A name without a
// tag matches any tag of that model. It returns the installed name.
func (c *Client) FindModel(ctx context.Context, model string) (string, bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", false, err
	}
	want := strings.ToLower(model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if name == want {
			return m.Name, true, nil
		}
	}
	if !strings.Contains(want, ":") {
		for _, m := range models {
			if strings.Split(strings.ToLower(m.Name), ":")[0] == wantBase {
				return m.Name, true, nil
			}
		}
	}
	return "", false, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}
