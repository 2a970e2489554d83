// Package openai analyzes articles with an OpenAI-compatible
// chat-completions API: summary and category, G-Eval headline and fact
// scores, and a short reasoning for both scores.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClientConfig configures the chat-completions client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client posts chat-completion requests.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Logprobs    bool          `json:"logprobs,omitempty"`
	TopLogprobs int           `json:"top_logprobs,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message  chatMessage `json:"message"`
		Logprobs *struct {
			Content []TokenLogprob `json:"content"`
		} `json:"logprobs"`
	} `json:"choices"`
}

// Ping checks that the client is configured. It does not call the API.
func (c *Client) Ping(context.Context) error {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return errors.New("openai client misconfigured")
	}
	return nil
}

func (c *Client) complete(ctx context.Context, req chatRequest) (chatResponse, error) {
	if err := c.Ping(ctx); err != nil {
		return chatResponse{}, err
	}
	req.Model = c.model

	body, err := json.Marshal(req)
	if err != nil {
		return chatResponse{}, fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return chatResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return chatResponse{}, fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return chatResponse{}, errors.New("chat response has no choices")
	}
	return out, nil
}

// decodeJSONContent parses a JSON object out of model text, tolerating a
// surrounding markdown code fence.
func decodeJSONContent(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}
