package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/logging"
)

const defaultHTTPTimeout = 300 * time.Second

// Config holds the connection settings for the inference service.
type Config struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

// Client talks to an OpenAI-compatible inference endpoint. It implements
// both Embedder and Chatter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logging.Logger
}

func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("inference base URL not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

// Embed requests a single embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body := map[string]any{
		"model": c.cfg.EmbedModel,
		"input": text,
	}

	respBody, err := c.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed embeddings response: %v", common.ErrInference, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embeddings response", common.ErrInference)
	}
	return parsed.Data[0].Embedding, nil
}

// Complete returns the whole completion as one string.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body := map[string]any{
		"model":    c.cfg.ChatModel,
		"messages": messages,
	}

	respBody, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed completion response: %v", common.ErrInference, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", common.ErrInference)
	}
	return parsed.Choices[0].Message.Content, nil
}

// CompleteStream starts a streamed completion. The returned Stream yields
// text increments as the backend produces them.
func (c *Client) CompleteStream(ctx context.Context, messages []Message) (Stream, error) {
	body := map[string]any{
		"model":    c.cfg.ChatModel,
		"messages": messages,
		"stream":   true,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req) //nolint:bodyclose // ownership moves to sseStream
	if err != nil {
		c.log.Warn(ctx, "inference request failed", "path", "/chat/completions", "err", err)
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		c.log.Warn(ctx, "inference request rejected", "path", "/chat/completions", "status", resp.StatusCode)
		return nil, classifyHTTPError(resp.StatusCode, raw)
	}

	c.log.Debug(ctx, "completion stream opened", "model", c.cfg.ChatModel)
	return newSSEStream(resp.Body), nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn(ctx, "inference request failed", "path", path, "err", err)
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", common.ErrInference, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Warn(ctx, "inference request rejected", "path", path, "status", resp.StatusCode)
		return nil, classifyHTTPError(resp.StatusCode, raw)
	}
	c.log.Debug(ctx, "inference request done", "path", path, "elapsed", time.Since(start))
	return raw, nil
}

// classifyTransportError maps connection-level failures onto the distinct
// recoverable kinds the caller's retry policy keys on.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrBackendTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", common.ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %v", common.ErrBackendUnreachable, err)
}

func classifyHTTPError(status int, body []byte) error {
	msg := extractAPIError(body)
	if status == http.StatusNotFound || strings.Contains(strings.ToLower(msg), "model") {
		return fmt.Errorf("%w: status=%d error=%s", common.ErrModelUnavailable, status, msg)
	}
	return fmt.Errorf("%w: status=%d error=%s", common.ErrInference, status, msg)
}

// extractAPIError pulls the message out of an OpenAI-style error body,
// falling back to the raw body.
func extractAPIError(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}
