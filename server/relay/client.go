// Package relay implements the outbound side of the ledgerchat service: a
// minimal client for an OpenAI-compatible chat-completion API. One request
// in, one completion out; retries, caching, and streaming are deliberately
// absent.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ledgerline/ledgerchat/config"
)

// StatusError reports a non-2xx answer from the upstream API. The raw body
// is kept for server-side logging and must never reach the caller.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Client talks to the upstream chat-completion endpoint. The generation
// parameters are fixed at construction; every call sends the same model,
// max_tokens, and temperature.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewClient creates a relay client from the upstream configuration.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Configured reports whether an upstream credential is present. An
// unconfigured client must not be asked to Complete.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the fixed model identifier sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one chat-completion request and returns the first choice's
// message content, trimmed. A non-2xx upstream status is returned as a
// *StatusError; any other error is a transport or decoding failure. An empty
// string with a nil error means the upstream answered 2xx without usable
// content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	payload := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Full detail stays server-side; the handler answers with a
		// generic message.
		c.logger.Error("Upstream completion request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.model),
			zap.ByteString("body", respBody),
		)
		return "", &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parse upstream response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
