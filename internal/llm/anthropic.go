package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/datapilot/reportgate/internal/errs"
)

// AnthropicClient implements Client using the Anthropic API.
// The SDK reads ANTHROPIC_API_KEY from the environment.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicClient creates an Anthropic-backed chat client.
// maxTokens defaults to 500 when <= 0.
func NewAnthropicClient(model anthropic.Model, maxTokens int64) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Chat sends one system+user exchange and returns the completion.
func (c *AnthropicClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (*Response, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, "anthropic request cancelled", err)
		}
		return nil, errs.Wrap(errs.ErrKindLLMFailed, "anthropic request failed", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return &Response{
				Content:    block.Text,
				Model:      string(msg.Model),
				TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
			}, nil
		}
	}

	return nil, errs.New(errs.ErrKindLLMFailed, "no text content in anthropic response")
}
