package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enclaro/backend/internal/retry"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	defaultTimeout   = 90 * time.Second
	apiVersion       = "2023-06-01"
)

// ErrNoAPIKey is returned before any network call when no credential is
// configured.
var ErrNoAPIKey = errors.New("claude: api key is not configured")

// APIError is a non-2xx response from the Anthropic API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic api error (%d): %s", e.StatusCode, e.Body)
}

// Config configures the Anthropic Messages client.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Retry     retry.Config // zero value selects retry.DefaultConfig()
}

// Client calls the Anthropic Messages API. One Client is shared by all
// concurrent requests; the underlying http.Client is concurrency-safe, so the
// mutex guards only its lazy (re)initialization after Close, never the
// request/response exchange itself.
type Client struct {
	cfg      Config
	retryCfg retry.Config

	mu         sync.Mutex
	httpClient *http.Client
}

// New creates a client. The connection pool is initialized lazily on first use
// and released by Close.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}

	return &Client{cfg: cfg, retryCfg: retryCfg}
}

// messageRequest is the Anthropic Messages API request body.
type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messageResponse is the subset of the reply the client consumes.
type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Invoke sends one logical request (with bounded retry) and returns the first
// text block of the reply. An empty or malformed reply yields an empty string
// rather than an error.
func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	var resultText string
	result := retry.Do(ctx, c.retryCfg, classify, func() error {
		text, err := c.attempt(ctx, systemPrompt, userPrompt)
		if err != nil {
			return err
		}
		resultText = text
		return nil
	})

	if !result.Success {
		return "", result.LastError
	}
	return resultText, nil
}

// attempt performs exactly one request/response exchange.
func (c *Client) attempt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("claude: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("claude: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("claude: decode response: %w", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	// Observed behavior: a reply without text content is returned as an empty
	// result, not an error. Log it so upstream protocol changes are visible.
	log.Warn().Str("model", c.cfg.Model).Msg("Anthropic reply contained no text content block")
	return "", nil
}

// client returns the shared http.Client, creating it if needed. Re-creation
// after Close is serialized here so concurrent callers cannot leak a second
// pool.
func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.cfg.Timeout}
	}
	return c.httpClient
}

// Close releases the shared connection pool. Invoked once at process shutdown;
// a later Invoke transparently re-creates the pool.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
}

// classify maps an attempt error to a retry class: 429 waits the longer
// rate-limit delay, any other HTTP status failure propagates immediately, and
// only transport-level errors (connection failures, timeouts) are transient.
func classify(err error) retry.Class {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return retry.ClassRateLimited
		}
		return retry.ClassFatal
	}
	return retry.ClassTransient
}
