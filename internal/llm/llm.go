// Package llm defines the chat-completion contract the gate uses for
// narrative guidance, with clients for an OpenAI-compatible model-serving
// endpoint and for the Anthropic API.
package llm

import "context"

// Response is the result of one chat completion.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that actually served the request, when reported.
	Model string

	// TokensUsed is the total tokens consumed, 0 if unavailable.
	TokensUsed int
}

// Client is the minimal chat contract consumed by the Gate Agent.
// Implementations must honor ctx cancellation and deadlines.
type Client interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (*Response, error)
}
