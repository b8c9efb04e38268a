// Package ai talks to the internal ai-service chat endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 60 * time.Second
	defaultAttempts = 3
	chatPath        = "/v1/chat"
)

// ErrNoJSON is returned when a reply carries no decodable JSON object.
var ErrNoJSON = errors.New("ai reply contains no JSON object")

// StatusError reports a non-200 reply from the ai-service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai-service returned status %d", e.Code)
}

type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Language string
	attempts int
	logger   *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.HTTP = h
		}
	}
}

func WithLanguage(lang string) Option {
	return func(c *Client) { c.Language = lang }
}

func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Language: "en",
		attempts: defaultAttempts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Agent string `json:"agent"`
	Input string `json:"input"`
}

type chatResponse struct {
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// Chat sends input to the chat endpoint and returns the agent's output text.
func (c *Client) Chat(ctx context.Context, input string) (string, error) {
	body, err := json.Marshal(chatRequest{Agent: "auto", Input: input})
	if err != nil {
		return "", err
	}
	resp, err := c.doPostWithRetry(ctx, chatPath, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	c.logger.Debug("ai chat reply", "status", resp.StatusCode, "bytes", len(rb))
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(rb)}
	}
	var out chatResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", fmt.Errorf("decode ai reply: %w", err)
	}
	return out.Output, nil
}

// ChatJSON is Chat for prompts that ask for a single JSON object. Replies
// wrapped in prose or code fences are tolerated.
func (c *Client) ChatJSON(ctx context.Context, input string, v interface{}) error {
	out, err := c.Chat(ctx, input)
	if err != nil {
		return err
	}
	obj, ok := ExtractJSON(out)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return nil
}

// ExtractJSON returns the outermost {...} span of s.
func ExtractJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// doPostWithRetry retries transport errors and 5xx replies with exponential
// backoff.
func (c *Client) doPostWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTP.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode}
		default:
			return resp, nil
		}

		if i < c.attempts-1 {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}
