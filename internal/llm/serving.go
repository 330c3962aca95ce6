package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datapilot/reportgate/internal/errs"
)

// maxResponseSize caps an endpoint response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// ServingConfig holds the settings for an OpenAI-compatible chat-completions
// endpoint (model-serving gateways expose this shape).
type ServingConfig struct {
	// BaseURL is the endpoint root, e.g.
	// "https://dbc-xxxx.cloud.databricks.com/serving-endpoints".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model is the served model name.
	Model string

	// Temperature is the sampling temperature. Guidance wants it low.
	Temperature float64

	// MaxTokens limits the response length. Defaults to 500 when zero.
	MaxTokens int

	// HTTPClient overrides the default client (120s timeout) when set.
	HTTPClient *http.Client
}

// ServingClient implements Client against an OpenAI-compatible endpoint.
// It is safe for concurrent use by multiple goroutines.
type ServingClient struct {
	cfg        ServingConfig
	httpClient *http.Client
}

// NewServingClient creates a client for the configured endpoint.
func NewServingClient(cfg ServingConfig) *ServingClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &ServingClient{cfg: cfg, httpClient: httpClient}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends one system+user exchange and returns the completion.
func (c *ServingClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (*Response, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "encode chat request", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, "chat request cancelled", err)
		}
		return nil, errs.Wrap(errs.ErrKindLLMFailed, "chat request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindLLMFailed, "read chat response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.ErrKindLLMFailed,
			fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errs.Wrap(errs.ErrKindLLMFailed, "decode chat response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errs.New(errs.ErrKindLLMFailed, "chat response contained no choices")
	}

	return &Response{
		Content:    parsed.Choices[0].Message.Content,
		Model:      parsed.Model,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
