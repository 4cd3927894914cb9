package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type mockScript struct {
	chunks []StreamChunk
	err    error
}

// MockClient replays scripted streams. Each call consumes the next script;
// with none queued it echoes the last user message as text.
type MockClient struct {
	mu       sync.Mutex
	scripts  []mockScript
	requests []ChatCompletionRequest
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ LLMClient = (*MockClient)(nil)

// Enqueue adds a stream to replay on a later call.
func (m *MockClient) Enqueue(chunks ...StreamChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, mockScript{chunks: chunks})
}

// EnqueueError makes a later call fail with err after replaying chunks.
func (m *MockClient) EnqueueError(err error, chunks ...StreamChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, mockScript{chunks: chunks, err: err})
}

// Requests returns copies of the requests received so far.
func (m *MockClient) Requests() []ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CreateChatCompletionStream replays the next script.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	var script mockScript
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	} else {
		script = mockScript{chunks: TextChunks(m.generateMockResponse(req), 10)}
	}
	m.mu.Unlock()

	for i := range script.chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := callback(&script.chunks[i]); err != nil {
			return nil, err
		}
	}
	if script.err != nil {
		return nil, script.err
	}

	return &Usage{PromptTokens: m.estimateTokens(req)}, nil
}

// ListModels returns a list of mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{
			ID:      "mock-gpt-3.5-turbo",
			Object:  "model",
			Created: time.Now().Unix(),
			OwnedBy: "mock",
		},
	}, nil
}

// TextChunks splits text into content delta chunks of about size bytes.
func TextChunks(text string, size int) []StreamChunk {
	var chunks []StreamChunk
	for _, part := range splitIntoChunks(text, size) {
		chunks = append(chunks, StreamChunk{
			Object:  "chat.completion.chunk",
			Choices: []Choice{{Delta: &Delta{Content: part}}},
		})
	}
	return chunks
}

// FunctionCallChunks streams a function call: the name first, then the
// arguments in fragments of about size bytes.
func FunctionCallChunks(name, arguments string, size int) []StreamChunk {
	chunks := []StreamChunk{{
		Object:  "chat.completion.chunk",
		Choices: []Choice{{Delta: &Delta{Role: "assistant", FunctionCall: &FunctionCall{Name: name}}}},
	}}
	for _, part := range splitIntoChunks(arguments, size) {
		chunks = append(chunks, StreamChunk{
			Object:  "chat.completion.chunk",
			Choices: []Choice{{Delta: &Delta{FunctionCall: &FunctionCall{Arguments: part}}}},
		})
	}
	return chunks
}

func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

func splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		return []string{s}
	}

	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
