// Package openrouter is a minimal OpenRouter.ai chat-completions client.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
)

const (
	baseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the fallback when no model is configured.
	DefaultModel = "openai/gpt-4o"

	// requestTimeout bounds a single completion round-trip, including
	// generation time for long transcripts.
	requestTimeout = 120 * time.Second

	maxRetries = 3
)

// Config holds client configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Logger      *zap.SugaredLogger
}

// Client talks to the OpenRouter chat-completions endpoint. Safe for
// concurrent use.
type Client struct {
	apiKey     string
	model      string
	temp       float64
	maxTokens  int
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient builds a client with sane defaults for unset options.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a single-user-message completion and returns the response
// text. Network-level failures are retried with linear backoff; API errors
// are not.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("OpenRouter API key not configured")
	}

	req := completionRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
	}

	var resp *completionResponse
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying OpenRouter request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err = c.createCompletion(ctx, req)
		if err == nil {
			break
		}

		c.logger.Warnw("OpenRouter API error",
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"error", err,
			"model", c.model,
		)
		if !isRetryableError(err) {
			return "", errors.Wrap(err, "OpenRouter API error")
		}
	}
	if err != nil {
		return "", errors.Wrapf(err, "OpenRouter API error after %d retries", maxRetries)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices from OpenRouter")
	}

	c.logger.Debugw("OpenRouter response",
		"content_length", len(resp.Choices[0].Message.Content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) createCompletion(ctx context.Context, req completionRequest) (*completionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", "videditor-jobrunner")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if httpResp.StatusCode != http.StatusOK {
		excerpt := string(respBody)
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}
		return nil, errors.Newf("API request failed with status %d: %s", httpResp.StatusCode, excerpt)
	}

	var resp completionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &resp, nil
}

// isRetryableError reports whether an error is network-level and worth
// another attempt.
func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// SetHTTPClient overrides the HTTP client. Test hook only.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
