// Package openrouter implements models.ModelGateway against the OpenRouter
// chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kiranshivaraju/deliberate/internal/config"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

const (
	maxAttempts    = 3
	defaultBaseURL = "https://openrouter.ai/api/v1"
)

// Client calls OpenRouter's chat-completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	referer     string
	title       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewClient creates a new OpenRouter client. The http.Client carries no
// timeout of its own; per-call deadlines come from the caller's context.
func NewClient(cfg config.OpenRouterConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		referer:     "https://github.com/kiranshivaraju/deliberate",
		title:       "Deliberate API",
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{},
	}
}

func (c *Client) Name() string { return "openrouter" }

// Complete sends one prompt and returns the reply text plus token usage.
// Rate-limit responses and transport failures are retried with exponential
// backoff up to maxAttempts; retries stop early once the context expires.
func (c *Client) Complete(ctx context.Context, model, prompt string) (models.Completion, error) {
	body := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		completion, err := c.doRequest(ctx, body)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		// Malformed payloads won't improve on retry.
		if errors.Is(err, models.ErrMalformedResponse) {
			return models.Completion{}, err
		}
		// Neither will auth or validation rejections; only 429 and
		// transport failures are worth another attempt.
		var fatal *nonRetryableError
		if errors.As(err, &fatal) {
			return models.Completion{}, fatal.err
		}

		if attempt < maxAttempts {
			wait := time.Duration(1<<attempt) * time.Second
			slog.Warn("openrouter request failed, retrying",
				"model", model, "attempt", attempt, "wait", wait, "error", err)
			select {
			case <-ctx.Done():
				return models.Completion{}, fmt.Errorf("%w: %v", models.ErrTimeout, ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	return models.Completion{}, lastErr
}

func (c *Client) doRequest(ctx context.Context, body chatRequest) (models.Completion, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return models.Completion{}, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return models.Completion{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.title)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return models.Completion{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.Completion{}, fmt.Errorf("%w: rate limited", models.ErrProviderError)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Completion{}, &nonRetryableError{
			err: fmt.Errorf("%w: status %d: %s", models.ErrProviderError, resp.StatusCode, msg),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return models.Completion{}, fmt.Errorf("%w: decoding response: %v", models.ErrMalformedResponse, err)
	}
	if len(chatResp.Choices) == 0 {
		return models.Completion{}, fmt.Errorf("%w: no response choices returned", models.ErrMalformedResponse)
	}

	return models.Completion{
		Text:       chatResp.Choices[0].Message.Content,
		TokensUsed: chatResp.Usage.TotalTokens,
	}, nil
}

// nonRetryableError marks provider rejections that retrying cannot fix,
// such as auth or request-validation failures.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// classifyError maps transport-level errors onto the gateway sentinels.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", models.ErrProviderError, err)
}

// --- OpenRouter wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Compile-time check that Client implements ModelGateway.
var _ models.ModelGateway = (*Client)(nil)
