// Package llm provides the streaming completion client used by turns.
package llm

import "context"

// LLMClient defines the interface for completion API operations.
type LLMClient interface {
	// CreateChatCompletionStream sends a streaming chat completion request.
	// The callback is called for each chunk received, in order.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error)

	// ListModels retrieves the list of available models.
	ListModels(ctx context.Context) ([]Model, error)
}

var _ LLMClient = (*Client)(nil)
