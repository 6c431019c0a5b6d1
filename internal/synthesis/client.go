package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Client calls a remote POST /synthesize endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientTimeout bounds each request.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient targets endpoint. A base URL without a path gets /synthesize.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if !strings.HasSuffix(endpoint, "/synthesize") {
		endpoint += "/synthesize"
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultBackendTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Endpoint returns the resolved URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Synthesize posts the request and decodes either the summary or the error.
func (c *Client) Synthesize(ctx context.Context, directive string, history []Turn) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if history == nil {
		history = []Turn{}
	}
	payload, err := json.Marshal(Request{DirectiveText: directive, History: history})
	if err != nil {
		return Summary{}, fmt.Errorf("synthesis: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Summary{}, fmt.Errorf("synthesis: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("synthesis: request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Summary{}, fmt.Errorf("synthesis: read response: %w", err)
	}

	var decoded Response
	decodeErr := json.Unmarshal(body, &decoded)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && decoded.Error != "" {
			return Summary{}, fmt.Errorf("synthesis: endpoint error (%d): %s", resp.StatusCode, decoded.Error)
		}
		return Summary{}, fmt.Errorf("synthesis: endpoint error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidSummary, decodeErr)
	}
	if decoded.Summary == nil {
		return Summary{}, fmt.Errorf("%w: response missing summary", ErrInvalidSummary)
	}
	v, err := defaultValidator()
	if err != nil {
		return Summary{}, err
	}
	if err := v.ValidateSummary(*decoded.Summary); err != nil {
		return Summary{}, err
	}
	return *decoded.Summary, nil
}
